package command

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

// MaxDice caps a single roll expression.
const MaxDice = 100

var dicePattern = regexp.MustCompile(`^(\d*)d(\d+)\s*(?:([+-])\s*(\d+))?$`)

// Roll is the result of one dice expression.
type Roll struct {
	Expression string
	Rolls      []int
	Modifier   int
	Total      int
}

// ParseRoll evaluates a dice expression of the form NdM, NdM+K or NdM-K.
// N defaults to 1. rng may be shared; callers seed it once.
func ParseRoll(expr string, rng *rand.Rand) (*Roll, error) {
	m := dicePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(expr)))
	if m == nil {
		return nil, fmt.Errorf("invalid dice expression %q (want NdM, NdM+K or NdM-K)", expr)
	}
	count := 1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid dice count in %q", expr)
		}
		count = n
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil || sides < 2 {
		return nil, fmt.Errorf("invalid die size in %q", expr)
	}
	if count > MaxDice {
		return nil, fmt.Errorf("at most %d dice per roll", MaxDice)
	}

	modifier := 0
	if m[3] != "" {
		k, err := strconv.Atoi(m[4])
		if err != nil {
			return nil, fmt.Errorf("invalid modifier in %q", expr)
		}
		if m[3] == "-" {
			k = -k
		}
		modifier = k
	}

	r := &Roll{Expression: expr, Modifier: modifier}
	for i := 0; i < count; i++ {
		v := rng.Intn(sides) + 1
		r.Rolls = append(r.Rolls, v)
		r.Total += v
	}
	r.Total += modifier
	return r, nil
}

// String renders a roll for chat output.
func (r *Roll) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎲 %s: ", strings.TrimSpace(r.Expression))
	if len(r.Rolls) > 1 || r.Modifier != 0 {
		parts := make([]string, len(r.Rolls))
		for i, v := range r.Rolls {
			parts[i] = strconv.Itoa(v)
		}
		b.WriteString("[" + strings.Join(parts, ", ") + "]")
		if r.Modifier > 0 {
			fmt.Fprintf(&b, " + %d", r.Modifier)
		} else if r.Modifier < 0 {
			fmt.Fprintf(&b, " - %d", -r.Modifier)
		}
		fmt.Fprintf(&b, " = %d", r.Total)
	} else {
		b.WriteString(strconv.Itoa(r.Total))
	}
	return b.String()
}

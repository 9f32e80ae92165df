// Package command parses player input into game commands. Everything that
// does not start with the command prefix is narration material and passes
// through untouched.
package command

import (
	"strings"
)

// Kind identifies a parsed command.
type Kind string

const (
	KindNone Kind = "" // plain narration, not a command

	KindJoin    Kind = "join"
	KindLeave   Kind = "leave"
	KindMask    Kind = "mask"
	KindDesc    Kind = "desc"
	KindInfo    Kind = "info"
	KindStatus  Kind = "status"
	KindSheet   Kind = "sheet"
	KindRoll    Kind = "roll"
	KindQuest   Kind = "quest"
	KindMemo    Kind = "memo"
	KindLore    Kind = "lore"
	KindRules   Kind = "rules"
	KindGenre   Kind = "genre"
	KindTone    Kind = "tone"
	KindNPC     Kind = "npc"
	KindPrepare Kind = "prepare"
	KindStart   Kind = "start"
	KindLock    Kind = "lock"
	KindUnlock  Kind = "unlock"
	KindMode    Kind = "mode"
	KindGrowth  Kind = "growth"
	KindGo      Kind = "go"
	KindWorld   Kind = "world"
	KindExport  Kind = "export"
	KindReset   Kind = "reset"
	KindDisable Kind = "disable"
	KindEnable  Kind = "enable"
	KindHelp    Kind = "help"
)

// aliases maps every accepted spelling to its canonical command.
var aliases = map[string]Kind{
	"join":     KindJoin,
	"register": KindJoin,
	"leave":    KindLeave,
	"quit":     KindLeave,
	"mask":     KindMask,
	"name":     KindMask,
	"desc":     KindDesc,
	"describe": KindDesc,
	"info":     KindInfo,
	"status":   KindStatus,
	"away":     KindStatus,
	"afk":      KindStatus,
	"back":     KindStatus,
	"sheet":    KindSheet,
	"stats":    KindSheet,
	"roll":     KindRoll,
	"r":        KindRoll,
	"quest":    KindQuest,
	"memo":     KindMemo,
	"note":     KindMemo,
	"lore":     KindLore,
	"rules":    KindRules,
	"genre":    KindGenre,
	"tone":     KindTone,
	"npc":      KindNPC,
	"prepare":  KindPrepare,
	"ready":    KindPrepare,
	"start":    KindStart,
	"lock":     KindLock,
	"unlock":   KindUnlock,
	"mode":     KindMode,
	"growth":   KindGrowth,
	"system":   KindGrowth,
	"go":       KindGo,
	"next":     KindGo,
	"world":    KindWorld,
	"export":   KindExport,
	"reset":    KindReset,
	"disable":  KindDisable,
	"enable":   KindEnable,
	"help":     KindHelp,
	"?":        KindHelp,
}

// Command is one parsed player command.
type Command struct {
	Kind Kind
	// Sub is the first argument word for commands with subcommands
	// (quest add/done/list, status away/back, mode auto/manual).
	Sub string
	// Arg is the remaining argument text after Sub.
	Arg string
	// Raw is the full argument string after the command word.
	Raw string
}

// subcommandKinds take their first argument word as a subcommand.
var subcommandKinds = map[Kind]bool{
	KindQuest:  true,
	KindMemo:   true,
	KindLore:   true,
	KindRules:  true,
	KindStatus: true,
	KindMode:   true,
	KindGrowth: true,
	KindNPC:    true,
	KindExport: true,
}

// ParseInput parses one message. A nil return means the message is plain
// narration. Unknown command words also return nil so the game master can
// treat stray prefix characters as story text.
func ParseInput(prefix, input string) *Command {
	trimmed := strings.TrimSpace(input)
	if prefix == "" || !strings.HasPrefix(trimmed, prefix) {
		return nil
	}
	body := strings.TrimSpace(trimmed[len(prefix):])
	if body == "" {
		return nil
	}

	word, rest, _ := strings.Cut(body, " ")
	kind, ok := aliases[strings.ToLower(word)]
	if !ok {
		return nil
	}
	rest = strings.TrimSpace(rest)

	cmd := &Command{Kind: kind, Raw: rest}

	// Status shortcut aliases carry the target state in the alias itself.
	switch strings.ToLower(word) {
	case "away":
		cmd.Sub = "away"
		cmd.Arg = rest
		return cmd
	case "afk":
		cmd.Sub = "afk"
		cmd.Arg = rest
		return cmd
	case "back":
		cmd.Sub = "back"
		cmd.Arg = rest
		return cmd
	}

	if subcommandKinds[kind] && rest != "" {
		sub, arg, _ := strings.Cut(rest, " ")
		cmd.Sub = strings.ToLower(sub)
		cmd.Arg = strings.TrimSpace(arg)
	} else {
		cmd.Arg = rest
	}
	return cmd
}

package domain

// Session lifecycle: a channel is prepared once its worldbuilding documents
// exist, then started, which locks registration. The lock refuses unknown
// ids only; known participants move freely between states while locked.

// Readiness reports what the preparation check found.
type Readiness struct {
	HasLore  bool
	HasRules bool
}

// Ready reports whether every precondition holds.
func (r Readiness) Ready() bool { return r.HasLore && r.HasRules }

// CheckReadiness evaluates the session-start preconditions for a channel.
// Lore must be real content, not the placeholder; the baseline rulebook
// counts as rules.
func (s *Store) CheckReadiness(channelID string) Readiness {
	return Readiness{
		HasLore:  s.HasLore(channelID),
		HasRules: s.Rules(channelID) != "",
	}
}

// Prepare runs the readiness check and, if it passes, marks the channel
// prepared. A failed check returns the readiness report with ErrNotPrepared.
func (s *Store) Prepare(channelID string) (Readiness, error) {
	r := s.CheckReadiness(channelID)
	if !r.Ready() {
		return r, ErrNotPrepared
	}
	err := s.Mutate(channelID, func(rec *Record) error {
		rec.Prepared = true
		return nil
	})
	return r, err
}

// StartSession locks registration on a prepared channel. Starting an
// unprepared channel fails with ErrNotPrepared.
func (s *Store) StartSession(channelID string) error {
	return s.Mutate(channelID, func(rec *Record) error {
		if !rec.Prepared {
			return ErrNotPrepared
		}
		rec.Settings.SessionLocked = true
		return nil
	})
}

// LockSession closes registration without the prepared requirement.
func (s *Store) LockSession(channelID string) error {
	return s.Mutate(channelID, func(rec *Record) error {
		rec.Settings.SessionLocked = true
		return nil
	})
}

// UnlockSession reopens registration without clearing preparation.
func (s *Store) UnlockSession(channelID string) error {
	return s.Mutate(channelID, func(rec *Record) error {
		rec.Settings.SessionLocked = false
		return nil
	})
}

// Prepared reports whether the channel passed preparation.
func (s *Store) Prepared(channelID string) bool {
	return s.Load(channelID).Prepared
}

// SessionLocked reports whether registration is locked.
func (s *Store) SessionLocked(channelID string) bool {
	return s.Load(channelID).Settings.SessionLocked
}

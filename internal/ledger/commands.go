package ledger

import "time"

// Command is one executed shortcode
type Command struct {
	ID         int64
	Command    string
	Verb       string
	Result     string
	ExecutedAt time.Time
}

// LogCommand records a shortcode and the text it returned
func (s *Store) LogCommand(cmd *Command) error {
	if s == nil {
		return nil
	}
	if cmd.ExecutedAt.IsZero() {
		cmd.ExecutedAt = time.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO commands (command, verb, result, executed_unix_ms)
		VALUES (?, ?, ?, ?)
	`, cmd.Command, cmd.Verb, cmd.Result, cmd.ExecutedAt.UnixMilli())
	if err != nil {
		return err
	}
	cmd.ID, err = res.LastInsertId()
	return err
}

// RecentCommands returns up to limit commands, newest first
func (s *Store) RecentCommands(limit int) ([]*Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, COALESCE(verb, ''), COALESCE(result, ''), executed_unix_ms
		FROM commands
		ORDER BY executed_unix_ms DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []*Command
	for rows.Next() {
		var c Command
		var executed int64
		if err := rows.Scan(&c.ID, &c.Command, &c.Verb, &c.Result, &executed); err != nil {
			return nil, err
		}
		c.ExecutedAt = time.UnixMilli(executed)
		cmds = append(cmds, &c)
	}
	return cmds, rows.Err()
}

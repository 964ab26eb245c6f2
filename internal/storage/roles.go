package storage

import "context"

func (s *Store) AddPersistedRole(ctx context.Context, guildID, userID, roleName string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO persisted_roles (guild_id, user_id, role_name) VALUES (?, ?, ?)
		ON CONFLICT (guild_id, user_id, role_name) DO NOTHING
	`), guildID, userID, roleName)
	return err
}

func (s *Store) RemovePersistedRole(ctx context.Context, guildID, userID, roleName string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM persisted_roles WHERE guild_id = ? AND user_id = ? AND role_name = ?
	`), guildID, userID, roleName)
	return err
}

func (s *Store) ListPersistedRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT role_name FROM persisted_roles
		WHERE guild_id = ? AND user_id = ?
		ORDER BY role_name
	`), guildID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

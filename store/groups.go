package store

// GroupRow is a persisted group identity.
type GroupRow struct {
	GroupID   string
	Name      string
	CreatorID string
}

// CreateGroup inserts a new group and its initial membership in a single
// transaction, so a crash mid-creation never leaves a group with no
// members or members pointing at a nonexistent group.
func (s *Store) CreateGroup(group GroupRow, memberIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO groups (group_id, name, creator_id) VALUES (?, ?, ?)`,
		group.GroupID, group.Name, group.CreatorID,
	); err != nil {
		return err
	}
	for _, peerID := range memberIDs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO group_members (group_id, peer_id) VALUES (?, ?)`,
			group.GroupID, peerID,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AddGroupMember adds a single peer to a group's membership.
func (s *Store) AddGroupMember(groupID, peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO group_members (group_id, peer_id) VALUES (?, ?)`,
		groupID, peerID,
	)
	return err
}

// RemoveGroupMember removes a single peer from a group's membership.
func (s *Store) RemoveGroupMember(groupID, peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`DELETE FROM group_members WHERE group_id = ? AND peer_id = ?`,
		groupID, peerID,
	)
	return err
}

// Groups returns every known group.
func (s *Store) Groups() ([]GroupRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT group_id, name, creator_id FROM groups`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GroupRow
	for rows.Next() {
		var g GroupRow
		if err := rows.Scan(&g.GroupID, &g.Name, &g.CreatorID); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GroupMembers returns the peer ids belonging to groupID.
func (s *Store) GroupMembers(groupID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT peer_id FROM group_members WHERE group_id = ?`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var peerID string
		if err := rows.Scan(&peerID); err != nil {
			return nil, err
		}
		out = append(out, peerID)
	}
	return out, rows.Err()
}

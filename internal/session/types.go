package session

// ListResponse is the payload of the session listing endpoint.
type ListResponse struct {
	Active   int     `json:"active"`
	Sessions []*Call `json:"sessions"`
}

func (m *Manager) Snapshot() ListResponse {
	sessions := m.List()
	active := 0
	for _, c := range sessions {
		if c.Status == StatusActive {
			active++
		}
	}
	return ListResponse{Active: active, Sessions: sessions}
}

package pool

import "time"

// PoolStatistics is a derived, read-only aggregate rebuilt on demand from
// the Registry. It is never independently mutated.
type PoolStatistics struct {
	ActiveConnections int            `json:"active_connections"`
	ActiveTables      int            `json:"active_tables"`
	TotalCreated      int64          `json:"total_created"`
	Replacements      int64          `json:"replacements"`
	IdleEvictions     int64          `json:"idle_evictions"`
	PerTable          map[string]int `json:"per_table"`
}

// ConnectionSummary describes one connection for the observability surface.
type ConnectionSummary struct {
	ConnectionID string    `json:"connection_id"`
	ClientID     string    `json:"client_id"`
	TableID      string    `json:"table_id"`
	Tier         string    `json:"tier"`
	Healthy      bool      `json:"healthy"`
	LoadScore    float64   `json:"load_score"`
	Sent         int64     `json:"sent"`
	Received     int64     `json:"received"`
	Errors       int64     `json:"errors"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// TableMetrics describes one table's current membership.
type TableMetrics struct {
	TableID     string              `json:"table_id"`
	Members     int                 `json:"members"`
	Capacity    int                 `json:"capacity"`
	Connections []ConnectionSummary `json:"connections"`
}

// Stats rebuilds the aggregate counters from current registry state.
func (r *Registry) Stats() PoolStatistics {
	r.mu.Lock()
	defer r.mu.Unlock()

	perTable := make(map[string]int, len(r.byTable))
	for tableID, ids := range r.byTable {
		perTable[tableID] = len(ids)
	}
	return PoolStatistics{
		ActiveConnections: len(r.byID),
		ActiveTables:      len(r.byTable),
		TotalCreated:      r.created,
		Replacements:      r.replacements,
		IdleEvictions:     r.idleEvicted,
		PerTable:          perTable,
	}
}

// DetailedMetrics returns a summary of every registered connection.
func (r *Registry) DetailedMetrics() []ConnectionSummary {
	conns := r.Connections()
	out := make([]ConnectionSummary, 0, len(conns))
	for _, conn := range conns {
		out = append(out, summarize(conn))
	}
	return out
}

// TableMetrics returns the membership details of one table.
func (r *Registry) TableMetrics(tableID string) TableMetrics {
	members := r.Members(tableID)
	tm := TableMetrics{
		TableID:     tableID,
		Members:     len(members),
		Capacity:    r.tableCapacity,
		Connections: make([]ConnectionSummary, 0, len(members)),
	}
	for _, conn := range members {
		tm.Connections = append(tm.Connections, summarize(conn))
	}
	return tm
}

func summarize(conn *Connection) ConnectionSummary {
	counters := conn.Counters()
	return ConnectionSummary{
		ConnectionID: conn.id.String(),
		ClientID:     conn.clientID,
		TableID:      conn.tableID,
		Tier:         counters.Tier.String(),
		Healthy:      counters.Errors < healthErrorThreshold,
		LoadScore:    counters.Tier.weight() + float64(counters.Errors)*10 + float64(counters.Sent+counters.Received)*0.1,
		Sent:         counters.Sent,
		Received:     counters.Received,
		Errors:       counters.Errors,
		CreatedAt:    conn.createdAt,
		LastActivity: counters.LastActive,
	}
}

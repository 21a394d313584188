package pool

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/batch"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/compression"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/metrics"
)

// Options configures a Registry.
type Options struct {
	TableCapacity  int
	MaxConnections int
	Clock          clockwork.Clock
	Negotiator     *compression.Negotiator
	Batcher        *batch.Batcher
}

// Registry owns the canonical set of live connections, indexed by connection
// id, owning client id, and table id. All mutation of the three indices goes
// through Registry methods under a single mutex; no other component touches
// them.
type Registry struct {
	mu             sync.Mutex
	clock          clockwork.Clock
	tableCapacity  int
	maxConnections int
	negotiator     *compression.Negotiator
	batcher        *batch.Batcher

	byID     map[uuid.UUID]*Connection
	byClient map[string]*Connection
	byTable  map[string][]uuid.UUID
	closed   bool

	created      int64
	replacements int64
	idleEvicted  int64
}

func NewRegistry(opts Options) *Registry {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock:          clock,
		tableCapacity:  opts.TableCapacity,
		maxConnections: opts.MaxConnections,
		negotiator:     opts.Negotiator,
		batcher:        opts.Batcher,
		byID:           make(map[uuid.UUID]*Connection),
		byClient:       make(map[string]*Connection),
		byTable:        make(map[string][]uuid.UUID),
	}
}

// Admit registers a new connection for a verified client on a table.
//
// Capacity is checked first: the table cap and the global cap both exclude a
// prior connection owned by the same client, because replacement frees that
// slot atomically. If the client already owns a connection, anywhere, it is
// closed with a "replaced" reason and removed from its table before the new
// one is registered — at most one connection per client, last one wins.
func (r *Registry) Admit(transport domain.Transport, clientID, tableID string, callbacks Callbacks) (*Connection, error) {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return nil, domain.ErrPoolClosed
	}

	prior := r.byClient[clientID]

	globalCount := len(r.byID)
	if prior != nil {
		globalCount--
	}
	if globalCount >= r.maxConnections {
		r.mu.Unlock()
		metrics.PoolCapacityRejectionsTotal.WithLabelValues("global").Inc()
		return nil, domain.ErrCapacityExceeded
	}

	tableCount := len(r.byTable[tableID])
	if prior != nil && prior.tableID == tableID {
		tableCount--
	}
	if tableCount >= r.tableCapacity {
		r.mu.Unlock()
		metrics.PoolCapacityRejectionsTotal.WithLabelValues("table").Inc()
		return nil, domain.ErrCapacityExceeded
	}

	if prior != nil {
		r.detachLocked(prior)
		r.replacements++
		metrics.PoolReplacementsTotal.Inc()
	}

	now := r.clock.Now()
	conn := &Connection{
		id:           uuid.New(),
		clientID:     clientID,
		tableID:      tableID,
		transport:    transport,
		mode:         r.negotiator.ModeFor(transport),
		callbacks:    callbacks,
		clock:        r.clock,
		createdAt:    now,
		lastActivity: now,
		lastChecked:  now,
		tier:         TierLow,
		negotiator:   r.negotiator,
		batcher:      r.batcher,
	}
	conn.writer = newConnWriter(transport, r.clock, func(err error) {
		conn.RecordError(err)
	})

	r.byID[conn.id] = conn
	r.byClient[clientID] = conn
	r.byTable[tableID] = append(r.byTable[tableID], conn.id)
	r.created++
	active := len(r.byID)
	r.mu.Unlock()

	metrics.PoolConnectionsTotal.Inc()
	metrics.PoolActiveConnections.Set(float64(active))

	if prior != nil {
		prior.close(domain.CloseNormal, "replaced")
		slog.Info("Connection replaced",
			"client_id", clientID,
			"old_connection_id", prior.id.String(),
			"new_connection_id", conn.id.String(),
			"table_id", tableID,
		)
	}

	slog.Debug("Connection admitted",
		"connection_id", conn.id.String(),
		"client_id", clientID,
		"table_id", tableID,
		"compression_mode", conn.mode.String(),
	)
	return conn, nil
}

// Remove deletes a connection from all three indices. Removing an absent id
// is a no-op. The transport is not touched; close paths handle that.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	conn, ok := r.byID[id]
	if ok {
		r.detachLocked(conn)
	}
	active := len(r.byID)
	r.mu.Unlock()

	if ok {
		metrics.PoolActiveConnections.Set(float64(active))
	}
}

// Release closes a connection gracefully and removes it from the indices.
// Used by the read pump on disconnect and by administrative kicks.
func (r *Registry) Release(conn *Connection, reason string) {
	r.Remove(conn.id)
	conn.close(domain.CloseNormal, reason)
}

// evictIdle closes and removes a connection on behalf of the idle reaper.
func (r *Registry) evictIdle(conn *Connection) {
	r.mu.Lock()
	if _, ok := r.byID[conn.id]; !ok {
		r.mu.Unlock()
		return
	}
	r.detachLocked(conn)
	r.idleEvicted++
	active := len(r.byID)
	r.mu.Unlock()

	metrics.PoolIdleEvictionsTotal.Inc()
	metrics.PoolActiveConnections.Set(float64(active))
	conn.close(domain.CloseNormal, "idle timeout")
}

// detachLocked removes the connection from every index. Caller holds mu.
func (r *Registry) detachLocked(conn *Connection) {
	delete(r.byID, conn.id)
	if r.byClient[conn.clientID] == conn {
		delete(r.byClient, conn.clientID)
	}

	ids := r.byTable[conn.tableID]
	for i, id := range ids {
		if id == conn.id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.byTable, conn.tableID)
	} else {
		r.byTable[conn.tableID] = ids
	}
}

// Get returns a connection by id.
func (r *Registry) Get(id uuid.UUID) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.byID[id]
	return conn, ok
}

// ByClient returns the client's current connection, if any.
func (r *Registry) ByClient(clientID string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.byClient[clientID]
	return conn, ok
}

// Members returns the table's connections in admission order.
func (r *Registry) Members(tableID string) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.byTable[tableID]
	out := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := r.byID[id]; ok {
			out = append(out, conn)
		}
	}
	return out
}

// Connections returns a snapshot of every registered connection.
func (r *Registry) Connections() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Connection, 0, len(r.byID))
	for _, conn := range r.byID {
		out = append(out, conn)
	}
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// SelectOptimal returns the healthy open connection with the lowest load
// score for a table, or nil when the table has no eligible connection.
// Ties resolve to the earliest-admitted connection.
func (r *Registry) SelectOptimal(tableID string) *Connection {
	members := r.Members(tableID)

	var best *Connection
	var bestScore float64
	for _, conn := range members {
		if !conn.Healthy() || conn.transport.State() != domain.StateOpen {
			continue
		}
		score := conn.LoadScore()
		if best == nil || score < bestScore {
			best = conn
			bestScore = score
		}
	}
	return best
}

// BroadcastToTable sends an envelope to every member of a table. A failed
// send degrades that one connection and never aborts the rest of the
// broadcast. Returns the number of successful deliveries.
func (r *Registry) BroadcastToTable(tableID string, env domain.Envelope, opts SendOptions) int {
	delivered := 0
	for _, conn := range r.Members(tableID) {
		if conn.transport.State() != domain.StateOpen {
			continue
		}
		if err := conn.Send(env, opts); err != nil {
			slog.Warn("Broadcast send failed",
				"connection_id", conn.id.String(),
				"table_id", tableID,
				"error", err,
			)
			continue
		}
		delivered++
	}
	return delivered
}

// markClosed makes every subsequent Admit fail with ErrPoolClosed.
func (r *Registry) markClosed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// CloseAll closes every remaining transport and clears all three indices.
func (r *Registry) CloseAll(code int, reason string) {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.byID))
	for _, conn := range r.byID {
		conns = append(conns, conn)
	}
	r.byID = make(map[uuid.UUID]*Connection)
	r.byClient = make(map[string]*Connection)
	r.byTable = make(map[string][]uuid.UUID)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.close(code, reason)
	}
	metrics.PoolActiveConnections.Set(0)
}

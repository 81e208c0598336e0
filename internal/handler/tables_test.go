package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/enum"
	"github.com/cantina-pos/api/internal/handler"
)

// --- Tx mocks ---

// handlerTx implements pgx.Tx with only the methods bulk init uses.
// The unused methods panic so we catch accidental calls.
type handlerTx struct {
	commitErr error
	committed bool
}

func (m *handlerTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *handlerTx) Commit(ctx context.Context) error {
	m.committed = true
	return m.commitErr
}
func (m *handlerTx) Rollback(ctx context.Context) error { return nil }
func (m *handlerTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *handlerTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *handlerTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *handlerTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *handlerTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *handlerTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *handlerTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *handlerTx) Conn() *pgx.Conn { panic("not implemented") }

type handlerTxBeginner struct {
	tx  *handlerTx
	err error
}

func (m *handlerTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// --- Mock store ---

type mockTableStore struct {
	tables     map[uuid.UUID]database.Table
	openOrders map[uuid.UUID]int64
	settings   *database.Settings
}

func newMockTableStore() *mockTableStore {
	return &mockTableStore{
		tables:     make(map[uuid.UUID]database.Table),
		openOrders: make(map[uuid.UUID]int64),
	}
}

func (m *mockTableStore) ListTables(_ context.Context) ([]database.Table, error) {
	var result []database.Table
	for _, tb := range m.tables {
		if tb.IsActive {
			result = append(result, tb)
		}
	}
	return result, nil
}

func (m *mockTableStore) GetTable(_ context.Context, id uuid.UUID) (database.Table, error) {
	tb, ok := m.tables[id]
	if !ok || !tb.IsActive {
		return database.Table{}, pgx.ErrNoRows
	}
	return tb, nil
}

func (m *mockTableStore) CreateTable(_ context.Context, arg database.CreateTableParams) (database.Table, error) {
	for _, existing := range m.tables {
		if existing.Label == arg.Label && existing.IsActive {
			return database.Table{}, &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
		}
	}
	tb := database.Table{
		ID:       uuid.New(),
		Label:    arg.Label,
		Capacity: arg.Capacity,
		Section:  arg.Section,
		Status:   arg.Status,
		IsActive: true,
	}
	m.tables[tb.ID] = tb
	return tb, nil
}

func (m *mockTableStore) UpdateTable(_ context.Context, arg database.UpdateTableParams) (database.Table, error) {
	tb, ok := m.tables[arg.ID]
	if !ok || !tb.IsActive {
		return database.Table{}, pgx.ErrNoRows
	}
	tb.Label = arg.Label
	tb.Capacity = arg.Capacity
	tb.Section = arg.Section
	m.tables[tb.ID] = tb
	return tb, nil
}

func (m *mockTableStore) UpdateTableStatus(_ context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
	tb, ok := m.tables[arg.ID]
	if !ok || !tb.IsActive {
		return database.Table{}, pgx.ErrNoRows
	}
	tb.Status = arg.Status
	m.tables[tb.ID] = tb
	return tb, nil
}

func (m *mockTableStore) SoftDeleteTable(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	tb, ok := m.tables[id]
	if !ok || !tb.IsActive {
		return uuid.Nil, pgx.ErrNoRows
	}
	tb.IsActive = false
	m.tables[id] = tb
	return id, nil
}

func (m *mockTableStore) CountTables(_ context.Context) (int64, error) {
	var count int64
	for _, tb := range m.tables {
		if tb.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *mockTableStore) CountActiveOrdersByTable(_ context.Context, tableID uuid.UUID) (int64, error) {
	return m.openOrders[tableID], nil
}

func (m *mockTableStore) GetSettings(_ context.Context) (database.Settings, error) {
	if m.settings == nil {
		return database.Settings{}, pgx.ErrNoRows
	}
	return *m.settings, nil
}

// --- Helpers ---

func setupTableRouter(store *mockTableStore) (*chi.Mux, *handlerTx) {
	tx := &handlerTx{}
	h := handler.NewTableHandler(&handlerTxBeginner{tx: tx}, store, func(db database.DBTX) handler.TableStore {
		return store
	})
	r := chi.NewRouter()
	r.Route("/tables", h.RegisterRoutes)
	return r, tx
}

func seedTable(store *mockTableStore, label, status string) database.Table {
	tb := database.Table{
		ID:       uuid.New(),
		Label:    label,
		Capacity: 4,
		Status:   status,
		IsActive: true,
	}
	store.tables[tb.ID] = tb
	return tb
}

// --- Tests ---

func TestCreateTable_Valid(t *testing.T) {
	store := newMockTableStore()
	r, _ := setupTableRouter(store)

	rr := doRequest(t, r, "POST", "/tables", map[string]interface{}{
		"label":    "Mesa 1",
		"capacity": 4,
		"section":  "terraza",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	data := dataField(t, rr)
	if data["status"] != "FREE" {
		t.Errorf("status: got %v, want FREE", data["status"])
	}
}

func TestCreateTable_DuplicateLabel(t *testing.T) {
	store := newMockTableStore()
	seedTable(store, "Mesa 1", enum.TableStatusFree)
	r, _ := setupTableRouter(store)

	rr := doRequest(t, r, "POST", "/tables", map[string]interface{}{
		"label":    "Mesa 1",
		"capacity": 4,
	})

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestInitTables_CreatesMissing(t *testing.T) {
	store := newMockTableStore()
	store.settings = &database.Settings{ID: 1, TableCount: 5}
	seedTable(store, "Mesa 1", enum.TableStatusFree)
	seedTable(store, "Mesa 2", enum.TableStatusFree)
	r, tx := setupTableRouter(store)

	rr := doRequest(t, r, "POST", "/tables/init", nil)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if got, _ := store.CountTables(context.Background()); got != 5 {
		t.Errorf("tables after init: got %d, want 5", got)
	}
	if !tx.committed {
		t.Error("init did not commit its transaction")
	}
}

func TestInitTables_AlreadyAtCount(t *testing.T) {
	store := newMockTableStore()
	store.settings = &database.Settings{ID: 1, TableCount: 1}
	seedTable(store, "Mesa 1", enum.TableStatusFree)
	r, _ := setupTableRouter(store)

	rr := doRequest(t, r, "POST", "/tables/init", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if got, _ := store.CountTables(context.Background()); got != 1 {
		t.Errorf("tables after init: got %d, want 1", got)
	}
}

func TestInitTables_NoSettings(t *testing.T) {
	store := newMockTableStore()
	r, _ := setupTableRouter(store)

	rr := doRequest(t, r, "POST", "/tables/init", nil)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestSetTableStatus_InvalidValue(t *testing.T) {
	store := newMockTableStore()
	tb := seedTable(store, "Mesa 1", enum.TableStatusFree)
	r, _ := setupTableRouter(store)

	rr := doRequest(t, r, "PATCH", "/tables/"+tb.ID.String()+"/status", map[string]interface{}{
		"status": "BROKEN",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSetTableStatus_FreeBlockedByOpenOrders(t *testing.T) {
	store := newMockTableStore()
	tb := seedTable(store, "Mesa 1", enum.TableStatusOccupied)
	store.openOrders[tb.ID] = 2
	r, _ := setupTableRouter(store)

	rr := doRequest(t, r, "PATCH", "/tables/"+tb.ID.String()+"/status", map[string]interface{}{
		"status": enum.TableStatusFree,
	})

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
	if store.tables[tb.ID].Status != enum.TableStatusOccupied {
		t.Error("table status changed despite open orders")
	}
}

func TestSetTableStatus_Cleaning(t *testing.T) {
	store := newMockTableStore()
	tb := seedTable(store, "Mesa 1", enum.TableStatusOccupied)
	r, _ := setupTableRouter(store)

	rr := doRequest(t, r, "PATCH", "/tables/"+tb.ID.String()+"/status", map[string]interface{}{
		"status": enum.TableStatusCleaning,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if store.tables[tb.ID].Status != enum.TableStatusCleaning {
		t.Errorf("table status: got %s, want CLEANING", store.tables[tb.ID].Status)
	}
}

func TestDeleteTable_BlockedByOpenOrders(t *testing.T) {
	store := newMockTableStore()
	tb := seedTable(store, "Mesa 1", enum.TableStatusOccupied)
	store.openOrders[tb.ID] = 1
	r, _ := setupTableRouter(store)

	rr := doRequest(t, r, "DELETE", "/tables/"+tb.ID.String(), nil)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestDeleteTable_Free(t *testing.T) {
	store := newMockTableStore()
	tb := seedTable(store, "Mesa 1", enum.TableStatusFree)
	r, _ := setupTableRouter(store)

	rr := doRequest(t, r, "DELETE", "/tables/"+tb.ID.String(), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if store.tables[tb.ID].IsActive {
		t.Error("table still active after delete")
	}
}

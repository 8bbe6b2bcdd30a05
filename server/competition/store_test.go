package competition

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync/atomic"
	"testing"
)

// rowsDriver 只支持 Exec，返回预设的影响行数
type rowsDriver struct{ affected *int64 }

func (d rowsDriver) Open(string) (driver.Conn, error) { return rowsConn(d), nil }

type rowsConn rowsDriver

func (c rowsConn) Prepare(string) (driver.Stmt, error) { return rowsStmt(c), nil }
func (c rowsConn) Close() error                        { return nil }
func (c rowsConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

type rowsStmt rowsConn

func (s rowsStmt) Close() error  { return nil }
func (s rowsStmt) NumInput() int { return -1 }
func (s rowsStmt) Exec([]driver.Value) (driver.Result, error) {
	return driver.RowsAffected(atomic.LoadInt64(s.affected)), nil
}
func (s rowsStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("not supported")
}

var affectedRows int64

func init() {
	sql.Register("competition-rows", rowsDriver{affected: &affectedRows})
}

func TestPGStoreSaveRequiresSingletonRow(t *testing.T) {
	db, err := sql.Open("competition-rows", "")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewPGStore(db)

	st, err := Initial().Start("Al 6061", 100, t0)
	if err != nil {
		t.Fatal(err)
	}

	atomic.StoreInt64(&affectedRows, 1)
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	atomic.StoreInt64(&affectedRows, 0)
	if err := store.Save(context.Background(), st); !errors.Is(err, ErrNoCompetitionRow) {
		t.Fatalf("Save() error = %v, want ErrNoCompetitionRow", err)
	}
}

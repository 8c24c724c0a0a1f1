package buffer

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresTryClaim(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"wins when row updated", 1, true},
		{"loses when lease held", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock: %v", err)
			}
			defer db.Close()

			// The claim predicate must also require a due buffer, so a
			// refreshed deadline blocks the lease.
			mock.ExpectExec(`(?s)UPDATE message_buffers.*expires_at <= \$3`).
				WithArgs("buf-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			store := NewPostgresStore(db)
			won, err := store.TryClaim(context.Background(), "buf-1", time.Minute)
			if err != nil {
				t.Fatalf("TryClaim: %v", err)
			}
			if won != tt.want {
				t.Errorf("TryClaim = %v, want %v", won, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("expectations: %v", err)
			}
		})
	}
}

func TestPostgresAppendReturnsCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("INSERT INTO message_buffers").
		WithArgs(sqlmock.AnyArg(), "tenant-1", "contact-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"jsonb_array_length"}).AddRow(3))

	store := NewPostgresStore(db)
	count, err := store.Append(context.Background(), testKey(), "hola", 5*time.Second)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgresOpenNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, tenant_id").
		WithArgs("tenant-1", "contact-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "contact_id", "fragments", "expires_at", "processing_until", "created_at",
		}))

	store := NewPostgresStore(db)
	if _, err := store.Open(context.Background(), testKey()); err != ErrBufferNotFound {
		t.Errorf("Open = %v, want ErrBufferNotFound", err)
	}
}

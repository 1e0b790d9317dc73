package db

import (
	"strings"
	"testing"

	"github.com/zulandar/waybill/internal/config"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "no password",
			cfg:  config.DatabaseConfig{User: "root", Host: "127.0.0.1", Port: 3306, Name: "waybill"},
			want: "root@tcp(127.0.0.1:3306)/waybill?parseTime=true",
		},
		{
			name: "with password",
			cfg:  config.DatabaseConfig{User: "wb", Password: "s3cret", Host: "db.internal", Port: 3307, Name: "tracker"},
			want: "wb:s3cret@tcp(db.internal:3307)/tracker?parseTime=true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error %q missing driver detail", err)
	}
}

func TestAutoMigrate_InMemory(t *testing.T) {
	gdb, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("missing table for %T", m)
		}
	}
}

func TestSeedSystemUser_Idempotent(t *testing.T) {
	gdb, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	first, err := SeedSystemUser(gdb)
	if err != nil {
		t.Fatalf("SeedSystemUser: %v", err)
	}
	second, err := SeedSystemUser(gdb)
	if err != nil {
		t.Fatalf("SeedSystemUser (second): %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("system user re-created: %d then %d", first.ID, second.ID)
	}
}

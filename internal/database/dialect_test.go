package database

import "testing"

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"postgres", Postgres, false},
		{"PostgreSQL", Postgres, false},
		{"pgx", Postgres, false},
		{" mysql ", MySQL, false},
		{"mariadb", MySQL, false},
		{"sqlite", SQLite, false},
		{"sqlite3", SQLite, false},
		{"oracle", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDialect(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDialect(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := "UPDATE t SET a = ?, b = '?' WHERE c = ?"

	if got := MySQL.Rebind(q); got != q {
		t.Errorf("MySQL.Rebind changed query: %q", got)
	}
	if got := SQLite.Rebind(q); got != q {
		t.Errorf("SQLite.Rebind changed query: %q", got)
	}

	want := "UPDATE t SET a = $1, b = '?' WHERE c = $2"
	if got := Postgres.Rebind(q); got != want {
		t.Errorf("Postgres.Rebind = %q, want %q", got, want)
	}
}

func TestDialect_Upsert(t *testing.T) {
	cols := []string{"patient_id", "gender", "age"}
	key := []string{"patient_id"}

	tests := []struct {
		dialect Dialect
		want    string
	}{
		{
			Postgres,
			"INSERT INTO patient (patient_id, gender, age) VALUES ($1, $2, $3)" +
				" ON CONFLICT (patient_id) DO UPDATE SET gender = EXCLUDED.gender, age = EXCLUDED.age",
		},
		{
			SQLite,
			"INSERT INTO patient (patient_id, gender, age) VALUES (?, ?, ?)" +
				" ON CONFLICT (patient_id) DO UPDATE SET gender = EXCLUDED.gender, age = EXCLUDED.age",
		},
		{
			MySQL,
			"INSERT INTO patient (patient_id, gender, age) VALUES (?, ?, ?)" +
				" ON DUPLICATE KEY UPDATE gender = VALUES(gender), age = VALUES(age)",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			if got := tt.dialect.Upsert("patient", cols, key); got != tt.want {
				t.Errorf("Upsert() =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}

func TestDialect_Upsert_KeyOnly(t *testing.T) {
	cols := []string{"a", "b"}
	key := []string{"a", "b"}

	if got, want := SQLite.Upsert("t", cols, key), "INSERT INTO t (a, b) VALUES (?, ?) ON CONFLICT (a, b) DO NOTHING"; got != want {
		t.Errorf("SQLite key-only upsert = %q, want %q", got, want)
	}
	if got, want := MySQL.Upsert("t", cols, key), "INSERT INTO t (a, b) VALUES (?, ?) ON DUPLICATE KEY UPDATE a = a"; got != want {
		t.Errorf("MySQL key-only upsert = %q, want %q", got, want)
	}
}

func TestDialect_DriverName(t *testing.T) {
	if got := Postgres.DriverName(); got != "pgx" {
		t.Errorf("Postgres.DriverName() = %q", got)
	}
	if got := MySQL.DriverName(); got != "mysql" {
		t.Errorf("MySQL.DriverName() = %q", got)
	}
	if got := SQLite.DriverName(); got != "sqlite" {
		t.Errorf("SQLite.DriverName() = %q", got)
	}
}

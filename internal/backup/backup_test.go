package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/networknest/networknest/internal/store"
)

func seedDB(t *testing.T, path string) {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()
	if _, err := st.DB().Exec(`CREATE TABLE t (v TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.DB().Exec(`INSERT INTO t (v) VALUES ('kept')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func archiveNames(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gr)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return names
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, hdr.Name)
	}
}

func TestBackupAndRestore(t *testing.T) {
	src := t.TempDir()
	dbPath := filepath.Join(src, "networknest.db")
	cfgPath := filepath.Join(src, "networknest.yaml")
	seedDB(t, dbPath)
	if err := os.WriteFile(cfgPath, []byte("server:\n  addr: :9090\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "backup.tar.gz")
	if err := Backup(context.Background(), dbPath, cfgPath, out); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	names := archiveNames(t, out)
	if len(names) != 2 || names[0] != "networknest.db" || names[1] != "networknest.yaml" {
		t.Fatalf("archive entries = %v", names)
	}

	dst := t.TempDir()
	if err := Restore(context.Background(), out, dst, false); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	st, err := store.Open(store.DriverSQLite, filepath.Join(dst, "networknest.db"))
	if err != nil {
		t.Fatalf("open restored db: %v", err)
	}
	defer st.Close()
	var v string
	if err := st.DB().QueryRow(`SELECT v FROM t`).Scan(&v); err != nil {
		t.Fatalf("query restored db: %v", err)
	}
	if v != "kept" {
		t.Errorf("restored value = %q, want %q", v, "kept")
	}
}

func TestBackup_MissingConfigIsSkipped(t *testing.T) {
	src := t.TempDir()
	dbPath := filepath.Join(src, "networknest.db")
	seedDB(t, dbPath)

	out := filepath.Join(t.TempDir(), "backup.tar.gz")
	if err := Backup(context.Background(), dbPath, filepath.Join(src, "missing.yaml"), out); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if names := archiveNames(t, out); len(names) != 1 {
		t.Errorf("archive entries = %v, want only the database", names)
	}
}

func TestBackup_MissingDatabase(t *testing.T) {
	err := Backup(context.Background(), filepath.Join(t.TempDir(), "nope.db"), "", filepath.Join(t.TempDir(), "out.tar.gz"))
	if err == nil {
		t.Fatal("Backup succeeded without a database")
	}
}

func TestRestore_RefusesOverwriteWithoutForce(t *testing.T) {
	src := t.TempDir()
	dbPath := filepath.Join(src, "networknest.db")
	seedDB(t, dbPath)
	out := filepath.Join(t.TempDir(), "backup.tar.gz")
	if err := Backup(context.Background(), dbPath, "", out); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	dst := t.TempDir()
	if err := os.WriteFile(filepath.Join(dst, "networknest.db"), []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Restore(context.Background(), out, dst, false); err == nil {
		t.Fatal("Restore overwrote an existing file without force")
	}
	if err := Restore(context.Background(), out, dst, true); err != nil {
		t.Fatalf("Restore with force: %v", err)
	}
}

func TestRestore_RejectsTraversal(t *testing.T) {
	out := filepath.Join(t.TempDir(), "evil.tar.gz")
	f, err := os.Create(out)
	if err != nil {
		t.Fatal(err)
	}
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	body := []byte("x")
	if err := tw.WriteHeader(&tar.Header{Name: "../escape.db", Mode: 0o600, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gw.Close()
	f.Close()

	if err := Restore(context.Background(), out, t.TempDir(), true); err == nil {
		t.Fatal("Restore accepted a path outside the data dir")
	}
}

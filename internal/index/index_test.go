package index

import (
	"errors"
	"testing"
)

type nopIndex struct{}

func (nopIndex) Find(key, valueOut []byte) bool { return false }
func (nopIndex) Insert(key, value []byte) bool { return true }
func (nopIndex) Update(key, value []byte) bool { return false }
func (nopIndex) Remove(key []byte) bool { return false }
func (nopIndex) Scan(key []byte, n int, out []byte) int { return 0 }
func (nopIndex) Close() error { return nil }

func TestRegistry(t *testing.T) {
	Register("test-nop", func(cfg Config) (Index, error) { return nopIndex{}, nil })
	Register("test-broken", func(cfg Config) (Index, error) { return nil, errors.New("boom") })

	idx, err := Open("test-nop", Config{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !idx.Insert(nil, nil) {
		t.Error("unexpected index returned")
	}

	if _, err := Open("test-broken", Config{}); err == nil {
		t.Error("Open() should surface factory errors")
	}

	_, err = Open("does-not-exist", Config{})
	if !errors.Is(err, ErrUnknownIndex) {
		t.Errorf("Open() error = %v, want ErrUnknownIndex", err)
	}

	found := false
	for _, name := range Names() {
		if name == "test-nop" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, missing test-nop", Names())
	}
}

func TestRegister_Duplicate(t *testing.T) {
	Register("test-dup", func(cfg Config) (Index, error) { return nopIndex{}, nil })
	defer func() {
		if recover() == nil {
			t.Error("Register() did not panic on duplicate name")
		}
	}()
	Register("test-dup", func(cfg Config) (Index, error) { return nopIndex{}, nil })
}

func TestSplitRecords(t *testing.T) {
	cfg := Config{KeySize: 2, ValueSize: 3}
	data := []byte("k1v01k2v02")

	var keys, values []string
	err := SplitRecords(data, 2, cfg, func(k, v []byte) error {
		keys = append(keys, string(k))
		values = append(values, string(v))
		return nil
	})
	if err != nil {
		t.Fatalf("SplitRecords() error = %v", err)
	}
	if len(keys) != 2 || keys[1] != "k2" || values[0] != "v01" {
		t.Errorf("SplitRecords() keys=%v values=%v", keys, values)
	}

	err = SplitRecords(data, 3, cfg, func(k, v []byte) error { return nil })
	if !errors.Is(err, ErrBadRecordSize) {
		t.Errorf("SplitRecords() error = %v, want ErrBadRecordSize", err)
	}
}

func TestConfig_Option(t *testing.T) {
	cfg := Config{Options: map[string]string{"shards": "8", "empty": ""}}
	if got := cfg.Option("shards", "1"); got != "8" {
		t.Errorf("Option(shards) = %q", got)
	}
	if got := cfg.Option("empty", "x"); got != "x" {
		t.Errorf("Option(empty) = %q, want default", got)
	}
	if got := cfg.Option("missing", "y"); got != "y" {
		t.Errorf("Option(missing) = %q, want default", got)
	}
}

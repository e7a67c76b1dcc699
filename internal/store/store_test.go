package store

import "testing"

func TestSaveAndLoadState(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	state := SymbolState{
		Symbol:      "BTCUSDT",
		Balance:     1000.5,
		LongPSize:   0.02,
		LongPPrice:  65000,
		ShortPSize:  0,
		ShortPPrice: 0,
	}

	if err := s.SaveState("BTCUSDT", state); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	loaded, err := s.LoadState("BTCUSDT")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadState returned nil")
	}

	if loaded.Balance != state.Balance {
		t.Errorf("Balance = %v, want %v", loaded.Balance, state.Balance)
	}
	if loaded.LongPPrice != state.LongPPrice {
		t.Errorf("LongPPrice = %v, want %v", loaded.LongPPrice, state.LongPPrice)
	}
}

func TestLoadStateMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	loaded, err := s.LoadState("nonexistent")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for missing state, got %+v", loaded)
	}
}

func TestSaveStateOverwrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_ = s.SaveState("BTCUSDT", SymbolState{Symbol: "BTCUSDT", Balance: 10})
	_ = s.SaveState("BTCUSDT", SymbolState{Symbol: "BTCUSDT", Balance: 20})

	loaded, err := s.LoadState("BTCUSDT")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded.Balance != 20 {
		t.Errorf("Balance = %v, want 20 (latest save)", loaded.Balance)
	}
}

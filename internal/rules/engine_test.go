package rules

import "testing"

func TestApplyUCIMove(t *testing.T) {
	eng := NewChessEngine()
	res, err := eng.Apply(nil, "e2e4")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.UCI != "e2e4" || res.SAN != "e4" {
		t.Fatalf("unexpected notations: uci=%q san=%q", res.UCI, res.SAN)
	}
	if res.Turn != Black {
		t.Fatalf("turn should pass to black, got %s", res.Turn)
	}
	if res.Outcome != OutcomeNone {
		t.Fatalf("opening move is not terminal")
	}
}

func TestApplySANFallback(t *testing.T) {
	eng := NewChessEngine()
	res, err := eng.Apply([]string{"e2e4"}, "Nf6")
	if err != nil {
		t.Fatalf("Apply SAN: %v", err)
	}
	if res.UCI != "g8f6" {
		t.Fatalf("expected g8f6, got %q", res.UCI)
	}
}

func TestApplyIllegalMove(t *testing.T) {
	eng := NewChessEngine()
	if _, err := eng.Apply(nil, "e2e5"); err != ErrIllegalMove {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if _, err := eng.Apply(nil, "garbage"); err != ErrIllegalMove {
		t.Fatalf("expected ErrIllegalMove for garbage, got %v", err)
	}
	// parseable UCI, illegal in the replayed position
	if _, err := eng.Apply([]string{"e2e4"}, "e7e4"); err != ErrIllegalMove {
		t.Fatalf("expected ErrIllegalMove for e7e4, got %v", err)
	}
}

func TestFoolsMateIsCheckmate(t *testing.T) {
	eng := NewChessEngine()
	res, err := eng.Apply([]string{"f2f3", "e7e5", "g2g4"}, "d8h4")
	if err != nil {
		t.Fatalf("Apply mate move: %v", err)
	}
	if res.Outcome != OutcomeCheckmate {
		t.Fatalf("expected checkmate, got %v", res.Outcome)
	}
	if res.Winner != Black {
		t.Fatalf("black delivers the mate, got winner=%s", res.Winner)
	}
}

func TestColorOpposite(t *testing.T) {
	if White.Opposite() != Black || Black.Opposite() != White {
		t.Fatalf("opposite colors broken")
	}
}

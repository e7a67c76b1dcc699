package types

import (
	"encoding/json"
	"testing"
)

func TestOrderRequestMarshalUsesDecimalStrings(t *testing.T) {
	t.Parallel()

	req := OrderRequest{
		Symbol:      "BTCUSDT",
		Side:        Buy,
		Qty:         0.1 + 0.2, // classic float64 drift case
		Price:       27123.5,
		OrderLinkID: "tag-1",
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if fields["qty"] != "0.3" {
		t.Errorf("qty = %v, want \"0.3\" (not float64 drift artifact)", fields["qty"])
	}
	if fields["price"] != "27123.5" {
		t.Errorf("price = %v, want \"27123.5\"", fields["price"])
	}
}

func TestPriceLevelWireRoundTrip(t *testing.T) {
	t.Parallel()

	data := []byte(`["27123.5","0.412"]`)
	var level PriceLevelWire
	if err := json.Unmarshal(data, &level); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if level.Price != 27123.5 || level.Size != 0.412 {
		t.Errorf("level = %+v", level)
	}

	out, err := json.Marshal(level)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `["27123.5","0.412"]` {
		t.Errorf("Marshal() = %s", out)
	}
}

func TestPriceLevelWireRejectsWrongShape(t *testing.T) {
	t.Parallel()

	var level PriceLevelWire
	if err := json.Unmarshal([]byte(`{"price":"1","size":"2"}`), &level); err == nil {
		t.Error("expected error unmarshaling an object instead of a 2-element array")
	}
}

package envelope

import "testing"

func TestDecodeRoundTrip(t *testing.T) {
	data, err := ToData(InsertRequest{Key: "a", Value: "1"})
	if err != nil {
		t.Fatalf("ToData: %v", err)
	}
	got, err := Decode[InsertRequest](data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Key != "a" || got.Value != "1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestOKBuildsStatus(t *testing.T) {
	resp, err := OK("req-1", InsertResponse{StoredAt: 7001})
	if err != nil {
		t.Fatalf("OK: %v", err)
	}
	if resp.Status != StatusOK || resp.ReqID != "req-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Data["stored_at"].(float64) != 7001 {
		t.Fatalf("unexpected data: %+v", resp.Data)
	}
}

func TestUnknownSetsReceivedType(t *testing.T) {
	resp := Unknown("req-2", "BOGUS")
	if resp.Status != StatusUnknown {
		t.Fatalf("expected UNKNOWN status, got %s", resp.Status)
	}
	if resp.Data["received_type"] != "BOGUS" {
		t.Fatalf("unexpected data: %+v", resp.Data)
	}
}

func TestErrSetsErrorString(t *testing.T) {
	resp := Err("req-3", errTest{})
	if resp.Status != StatusError || resp.Error != "boom" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }

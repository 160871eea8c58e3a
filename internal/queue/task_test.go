package queue

import "testing"

func TestDecodeTask_RoundTrip(t *testing.T) {
	in := Task{Type: TaskRefresh, View: "notifications", DeviceID: "dev"}
	out, err := DecodeTask(in.values())
	if err != nil {
		t.Fatalf("DecodeTask: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestDecodeTask_MissingType(t *testing.T) {
	if _, err := DecodeTask(map[string]interface{}{"view": "rooms"}); err == nil {
		t.Fatalf("expected error")
	}
}

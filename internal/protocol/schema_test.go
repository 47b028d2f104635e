package protocol

import (
	"fmt"
	"strings"
	"testing"
)

func TestDecodeAct_Valid(t *testing.T) {
	act, err := DecodeAct([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "tick":3,
	  "ops":[
	    {"id":"o1","op":"MOVE","from":{"holder":"SLOT","slot":0},"to":{"holder":"CURSOR"}},
	    {"id":"o2","op":"MOVE_N","from":{"holder":"CURSOR"},"to":{"holder":"CONTAINER_SLOT","container_id":"CHEST@1","slot":4},"count":2},
	    {"id":"o3","op":"RELEASE"}
	  ]
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(act.Ops) != 3 {
		t.Fatalf("ops=%d", len(act.Ops))
	}
	if act.Ops[0].From.Slot == nil || *act.Ops[0].From.Slot != 0 {
		t.Fatalf("slot 0 must survive decoding: %+v", act.Ops[0].From)
	}
	if act.Ops[1].To.ContainerID != "CHEST@1" || act.Ops[1].Count != 2 {
		t.Fatalf("unexpected op: %+v", act.Ops[1])
	}
}

func TestDecodeAct_Rejects(t *testing.T) {
	cases := map[string]string{
		"wrong type":    `{"type":"HELLO","protocol_version":"1.0","ops":[]}`,
		"unknown op":    `{"type":"ACT","protocol_version":"1.0","ops":[{"id":"a","op":"EAT"}]}`,
		"bad holder":    `{"type":"ACT","protocol_version":"1.0","ops":[{"id":"a","op":"MOVE","from":{"holder":"POCKET"}}]}`,
		"negative slot": `{"type":"ACT","protocol_version":"1.0","ops":[{"id":"a","op":"MOVE","from":{"holder":"SLOT","slot":-1}}]}`,
		"missing ops":   `{"type":"ACT","protocol_version":"1.0"}`,
		"not json":      `{"type":`,
	}
	for name, raw := range cases {
		if _, err := DecodeAct([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDecodeAct_TooManyOps(t *testing.T) {
	ops := make([]string, MaxOpsPerAct+1)
	for i := range ops {
		ops[i] = fmt.Sprintf(`{"id":"o%d","op":"RELEASE"}`, i)
	}
	raw := `{"type":"ACT","protocol_version":"1.0","ops":[` + strings.Join(ops, ",") + `]}`
	if _, err := DecodeAct([]byte(raw)); err == nil {
		t.Fatalf("expected maxItems error")
	}
}

package logging

import "testing"

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(0, "encode") {
		t.Fatal("first event should log")
	}
	if s.ShouldLog(2, "encode") {
		t.Fatal("same bucket should not log")
	}
	if !s.ShouldLog(5, "encode") {
		t.Fatal("bucket boundary should log")
	}
	if !s.ShouldLog(100, "encode") {
		t.Fatal("completion should log")
	}
}

func TestProgressSamplerStageChange(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "palette")
	if !s.ShouldLog(1, "apply") {
		t.Fatal("stage change should log even when percent drops")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "encode")
	s.Reset()
	if !s.ShouldLog(0, "encode") {
		t.Fatal("reset should allow the first event again")
	}
}

package utils

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSetNoDuplicates(t *testing.T) {
	s := NewSet[string]()

	added := s.Add("1000.42")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("1000.42")
	if added {
		t.Error("second Add of same id should return false")
	}

	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}
	if !s.Contains("1000.42") {
		t.Error("Contains should report the added id")
	}
}

func TestSetConcurrency(t *testing.T) {
	s := NewSet[string]()
	var added int64

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("same-request") {
				atomic.AddInt64(&added, 1)
			}
		}()
	}
	wg.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

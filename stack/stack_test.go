// stack_test.go - Simple test-cases for our stack

package stack

import "testing"

// TestEmpty: Test that the Empty() function works as expected.
func TestEmpty(t *testing.T) {
	s := New(10)

	if !s.Empty() {
		t.Errorf("New stack is not empty!")
	}

	s.Push(33)

	if s.Empty() {
		t.Errorf("Despite storing a value the stack is still empty!")
	}
}

// TestEmptyPop: Test that pop'ing from an empty stack fails.
func TestEmptyPop(t *testing.T) {
	s := New(10)

	_, err := s.Pop()
	if err != ErrEmpty {
		t.Errorf("Expected ErrEmpty popping from an empty stack, got %v", err)
	}
}

// TestPushPop: Test that we can store/retrieve as we expect.
func TestPushPop(t *testing.T) {
	s := New(10)

	s.Push(33)

	out, err := s.Pop()
	if err != nil {
		t.Errorf("We shouldn't get an error popping from our stack")
	}
	if out != 33 {
		t.Errorf("We retrieved a value from our stack, but it was wrong")
	}
}

// TestFull: Test that pushing beyond maxDepth fails.
func TestFull(t *testing.T) {
	s := New(2)

	if err := s.Push(1); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := s.Push(2); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := s.Push(3); err != ErrFull {
		t.Errorf("expected ErrFull, got %v", err)
	}
}

// TestPeek: Test that Peek doesn't remove the top item.
func TestPeek(t *testing.T) {
	s := New(10)
	s.Push(7)

	v, err := s.Peek()
	if err != nil || v != 7 {
		t.Fatalf("unexpected peek result: %v, %v", v, err)
	}
	if s.Len() != 1 {
		t.Fatalf("peek should not remove the item, len=%d", s.Len())
	}
}

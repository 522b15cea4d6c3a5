package room

import (
	"strings"
	"testing"
)

func TestRandomRoomCodeUsesExpectedAlphabetAndLength(t *testing.T) {
	code, err := randomRoomCode(6)
	if err != nil {
		t.Fatalf("randomRoomCode: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected a 6-character code, got %q", code)
	}
	for _, c := range code {
		if !strings.ContainsRune(roomCodeAlphabet, c) {
			t.Fatalf("code %q contains character %q outside the alphabet", code, c)
		}
	}
}

func TestListReturnsAllCreatedRooms(t *testing.T) {
	reg := testRegistry()
	reg.CreateRoom("Alice")
	reg.CreateRoom("Bob")

	summaries := reg.List()
	if len(summaries) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(summaries))
	}
}

func TestCloseHookFiresAndRemovesRoomFromRegistry(t *testing.T) {
	reg := testRegistry()
	r, slot, _ := reg.CreateRoom("Alice")

	closed := make(chan struct{}, 1)
	reg.SetRoomCloseHook(func(*Room) { closed <- struct{}{} })

	if _, err := r.Start(slot.PlayerID); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Stop()

	select {
	case <-closed:
	default:
		t.Fatal("expected the registry-installed close hook to have fired")
	}

	if _, ok := reg.Get(r.ID()); ok {
		t.Fatal("expected the room to be removed from the registry after close")
	}
}

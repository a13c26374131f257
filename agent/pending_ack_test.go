package agent

import "testing"

func TestPendingAckTableReserveTakeRoundTrip(t *testing.T) {
	table := newPendingAckTable(2)
	cmd := &Command{Kind: CommandPublish}

	if !table.spaceAvailable() {
		t.Fatal("expected space available on an empty table")
	}
	if !table.reserve(7, cmd) {
		t.Fatal("reserve on empty table should succeed")
	}
	if got := table.occupied(); got != 1 {
		t.Fatalf("occupied = %d, want 1", got)
	}

	got, ok := table.take(7)
	if !ok || got != cmd {
		t.Fatalf("take(7) = %v, %v; want %v, true", got, ok, cmd)
	}
	if got := table.occupied(); got != 0 {
		t.Fatalf("occupied after take = %d, want 0", got)
	}

	if _, ok := table.take(7); ok {
		t.Fatal("take on an already-cleared slot should fail")
	}
}

func TestPendingAckTableFullRejectsReserve(t *testing.T) {
	table := newPendingAckTable(1)
	if !table.reserve(1, &Command{}) {
		t.Fatal("first reserve into a 1-slot table should succeed")
	}
	if table.spaceAvailable() {
		t.Fatal("expected no space available once the only slot is filled")
	}
	if table.reserve(2, &Command{}) {
		t.Fatal("reserve into a full table should fail")
	}
}

func TestPendingAckTableForEachClearsAllSlots(t *testing.T) {
	table := newPendingAckTable(4)
	cmds := []*Command{{Kind: CommandPublish}, {Kind: CommandSubscribe}, {Kind: CommandPing}}
	for i, c := range cmds {
		if !table.reserve(uint16(i+1), c) {
			t.Fatalf("reserve %d failed", i)
		}
	}

	visited := make(map[uint16]*Command)
	table.forEach(func(packetID uint16, origin *Command) {
		visited[packetID] = origin
	})

	if len(visited) != len(cmds) {
		t.Fatalf("forEach visited %d slots, want %d", len(visited), len(cmds))
	}
	if table.occupied() != 0 {
		t.Fatal("forEach must clear every slot it visits")
	}
}

func TestPendingAckTableZeroPacketIDNeverReserved(t *testing.T) {
	table := newPendingAckTable(1)
	// packetID 0 is the unused-slot sentinel; reserving it would make the
	// slot indistinguishable from empty.
	if !table.reserve(0, &Command{}) {
		t.Fatal("reserve does not itself forbid packetID 0")
	}
	if table.occupied() != 0 {
		t.Fatal("a slot holding packetID 0 must still read as unoccupied")
	}
}

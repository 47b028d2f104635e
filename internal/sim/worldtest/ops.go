package worldtest

import (
	"fmt"

	"stackcraft.ai/internal/protocol"
)

var opSeq int

func Act(ops ...protocol.InvOp) protocol.ActMsg {
	for i := range ops {
		if ops[i].ID == "" {
			opSeq++
			ops[i].ID = fmt.Sprintf("K_%d", opSeq)
		}
	}
	return protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Ops: ops}
}

func Slot(i int) *protocol.HolderRef {
	return &protocol.HolderRef{Holder: protocol.HolderSlot, Slot: &i}
}

func Cursor() *protocol.HolderRef    { return &protocol.HolderRef{Holder: protocol.HolderCursor} }
func Ground() *protocol.HolderRef    { return &protocol.HolderRef{Holder: protocol.HolderGround} }
func Inventory() *protocol.HolderRef { return &protocol.HolderRef{Holder: protocol.HolderInventory} }

func ContainerSlot(id string, i int) *protocol.HolderRef {
	return &protocol.HolderRef{Holder: protocol.HolderContainerSlot, ContainerID: id, Slot: &i}
}

func Container(id string) *protocol.HolderRef {
	return &protocol.HolderRef{Holder: protocol.HolderContainer, ContainerID: id}
}

func Move(from, to *protocol.HolderRef) protocol.InvOp {
	return protocol.InvOp{Op: protocol.OpMove, From: from, To: to}
}

func MoveN(from, to *protocol.HolderRef, n int) protocol.InvOp {
	return protocol.InvOp{Op: protocol.OpMoveN, From: from, To: to, Count: n}
}

func Split(from, to *protocol.HolderRef) protocol.InvOp {
	return protocol.InvOp{Op: protocol.OpSplit, From: from, To: to}
}

func Open(containerID string) protocol.InvOp {
	return protocol.InvOp{Op: protocol.OpOpen, ContainerID: containerID}
}

func Close(containerID string) protocol.InvOp {
	return protocol.InvOp{Op: protocol.OpClose, ContainerID: containerID}
}

func Release() protocol.InvOp { return protocol.InvOp{Op: protocol.OpRelease} }

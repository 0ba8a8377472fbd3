// Package command parses constrained Portuguese edit instructions ("remova
// 2 e 4", "mantém apenas 1, 3 e 5", "confirmo") into typed commands over
// a requirement list. Parsing is pure and deterministic.
package command

import "fmt"

type Kind string

const (
	KindRemove       Kind = "remove"
	KindRemoveRange  Kind = "remove_range"
	KindReplace      Kind = "replace"
	KindKeepOnly     Kind = "keep_only"
	KindConfirm      Kind = "confirm"
	KindUnrecognized Kind = "unrecognized"
)

// Command is one of Remove, RemoveRange, Replace, KeepOnly, Confirm or
// Unrecognized. Positions are 1-based, sorted and unique.
type Command interface {
	Kind() Kind
	String() string
	command()
}

type Remove struct{ Positions []int }

type RemoveRange struct{ Start, End int }

// Replace asks for the named items to be regenerated in place.
type Replace struct{ Positions []int }

type KeepOnly struct{ Positions []int }

type Confirm struct{}

type Unrecognized struct{ Reason string }

func (Remove) Kind() Kind       { return KindRemove }
func (RemoveRange) Kind() Kind  { return KindRemoveRange }
func (Replace) Kind() Kind      { return KindReplace }
func (KeepOnly) Kind() Kind     { return KindKeepOnly }
func (Confirm) Kind() Kind      { return KindConfirm }
func (Unrecognized) Kind() Kind { return KindUnrecognized }

func (c Remove) String() string       { return fmt.Sprintf("Remove(%v)", c.Positions) }
func (c RemoveRange) String() string  { return fmt.Sprintf("RemoveRange(%d,%d)", c.Start, c.End) }
func (c Replace) String() string      { return fmt.Sprintf("Replace(%v)", c.Positions) }
func (c KeepOnly) String() string     { return fmt.Sprintf("KeepOnly(%v)", c.Positions) }
func (Confirm) String() string        { return "Confirm" }
func (c Unrecognized) String() string { return fmt.Sprintf("Unrecognized(%s)", c.Reason) }

func (Remove) command()       {}
func (RemoveRange) command()  {}
func (Replace) command()      {}
func (KeepOnly) command()     {}
func (Confirm) command()      {}
func (Unrecognized) command() {}

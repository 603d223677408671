// Package hostdialog offers a native "open file" dialog for picking a
// BIOS image or disc/EXE when cmd/psxcore is launched without an
// explicit path, grounded on the pack's CHIP-8 host loader's use of
// the same library for its ROM picker.
package hostdialog

import (
	"github.com/pkg/errors"
	"github.com/sqweek/dialog"
)

// FilePicker is the host-facing file-selection collaborator, kept as
// an interface so cmd/psxcore can swap in a stub for scripted/headless
// runs without linking the native dialog library's cgo dependencies.
type FilePicker interface {
	PickBIOS() (string, error)
	PickDisc() (string, error)
}

// NativePicker implements FilePicker with the OS's native file
// chooser.
type NativePicker struct{}

// PickBIOS opens a chooser filtered to BIOS image extensions.
func (NativePicker) PickBIOS() (string, error) {
	path, err := dialog.File().
		Title("Select a PS-X BIOS image").
		Filter("BIOS image", "bin", "rom").
		Load()
	if err != nil {
		return "", errors.Wrap(err, "hostdialog: picking BIOS")
	}
	return path, nil
}

// PickDisc opens a chooser filtered to disc/executable images.
func (NativePicker) PickDisc() (string, error) {
	path, err := dialog.File().
		Title("Select a disc image or PS-X EXE").
		Filter("Disc image", "cue", "bin", "img").
		Filter("PS-X executable", "exe", "psexe").
		Load()
	if err != nil {
		return "", errors.Wrap(err, "hostdialog: picking disc image")
	}
	return path, nil
}

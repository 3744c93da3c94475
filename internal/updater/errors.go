package updater

import "errors"

var (
	ErrSave    = errors.New("can't persist history")
	ErrOutput  = errors.New("can't write feed")
	ErrPublish = errors.New("can't publish feed")
)

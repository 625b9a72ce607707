package models

import "errors"

var (
	ErrStageEventImmutable    = errors.New("stage events cannot be modified")
	ErrCompletedTaskImmutable = errors.New("completed tasks cannot be modified")
)

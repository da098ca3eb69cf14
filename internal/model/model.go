package model

import (
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsim/internal/model/messages"
)

// Aliases exposing the common types to the services

type (
	DayNumber               = entities.DayNumber
	Field                   = entities.Field
	Stage                   = entities.Stage
	DailyRecordEvent        = messages.DailyRecordEvent
	StageChangeEvent        = messages.StageChangeEvent
	IrrigationDecisionEvent = messages.IrrigationDecisionEvent
	RunResultEvent          = messages.RunResultEvent
	RunRequest              = messages.RunRequest
)

const (
	StatusOK        = "OK"
	StatusFail      = "FAIL"
	StatusCancelled = "CANCELLED"
)

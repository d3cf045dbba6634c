package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	比較パイプラインのエラー型
//
// ===========================================================================
//
// Every stage of a comparison run reports failures through one of these
// types. None of them is recovered inside the pipeline: the first one aborts
// the run.

// DataLoadError は入力ファイルが存在しない、または不正な形式の場合のエラーです。
type DataLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DataLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("modelbench: load %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("modelbench: load %s: %s", e.Path, e.Reason)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DataLoadError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Str("reason", e.Reason).
		Str("type", "DataLoadError")
}

// NewDataLoadError は新しいDataLoadErrorを作成し、スタックトレースを付与します。
func NewDataLoadError(path, reason string, err error) error {
	return errors.WithStack(&DataLoadError{Path: path, Reason: reason, Err: err})
}

// PreprocessingError は前処理の段階で続行できなくなった場合のエラーです。
// Step は失敗した段階（"drop_target", "impute", "encode", "scale", "split"）を示します。
type PreprocessingError struct {
	Step   string
	Column string
	Reason string
}

func (e *PreprocessingError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("modelbench: preprocessing %s: column %q: %s", e.Step, e.Column, e.Reason)
	}
	return fmt.Sprintf("modelbench: preprocessing %s: %s", e.Step, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *PreprocessingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("step", e.Step).
		Str("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "PreprocessingError")
}

// NewPreprocessingError は新しいPreprocessingErrorを作成し、スタックトレースを付与します。
func NewPreprocessingError(step, column, reason string) error {
	return errors.WithStack(&PreprocessingError{Step: step, Column: column, Reason: reason})
}

// TrainingError はモデルの学習に失敗した場合のエラーです。
type TrainingError struct {
	Model  string
	Reason string
	Err    error
}

func (e *TrainingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("modelbench: train %s: %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("modelbench: train %s: %s", e.Model, e.Reason)
}

func (e *TrainingError) Unwrap() error { return e.Err }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *TrainingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.Model).
		Str("reason", e.Reason).
		Str("type", "TrainingError")
}

// NewTrainingError は新しいTrainingErrorを作成し、スタックトレースを付与します。
func NewTrainingError(model, reason string, err error) error {
	return errors.WithStack(&TrainingError{Model: model, Reason: reason, Err: err})
}

// EvaluationError は予測結果を採点できない場合のエラーです。
type EvaluationError struct {
	Model  string
	Reason string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("modelbench: evaluate %s: %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("modelbench: evaluate %s: %s", e.Model, e.Reason)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EvaluationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.Model).
		Str("reason", e.Reason).
		Str("type", "EvaluationError")
}

// NewEvaluationError は新しいEvaluationErrorを作成し、スタックトレースを付与します。
func NewEvaluationError(model, reason string, err error) error {
	return errors.WithStack(&EvaluationError{Model: model, Reason: reason, Err: err})
}

// RenderError は診断図を生成できない場合のエラーです。
type RenderError struct {
	Diagnostic string
	Model      string
	Reason     string
	Err        error
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("modelbench: render %s", e.Diagnostic)
	if e.Model != "" {
		msg += fmt.Sprintf(" for %s", e.Model)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *RenderError) Unwrap() error { return e.Err }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *RenderError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("diagnostic", e.Diagnostic).
		Str("model_name", e.Model).
		Str("reason", e.Reason).
		Str("type", "RenderError")
}

// NewRenderError は新しいRenderErrorを作成し、スタックトレースを付与します。
func NewRenderError(diagnostic, model, reason string, err error) error {
	return errors.WithStack(&RenderError{Diagnostic: diagnostic, Model: model, Reason: reason, Err: err})
}

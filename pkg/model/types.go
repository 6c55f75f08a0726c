package model

import internalmodel "github.com/goliatone/go-formsync/internal/model"

// Widget re-exports the internal widget enumeration.
type Widget = internalmodel.Widget

const (
	WidgetText     = internalmodel.WidgetText
	WidgetEmail    = internalmodel.WidgetEmail
	WidgetURL      = internalmodel.WidgetURL
	WidgetNumber   = internalmodel.WidgetNumber
	WidgetRange    = internalmodel.WidgetRange
	WidgetTextarea = internalmodel.WidgetTextarea
	WidgetSelect   = internalmodel.WidgetSelect
	WidgetRadio    = internalmodel.WidgetRadio
	WidgetCheckbox = internalmodel.WidgetCheckbox
	WidgetDate     = internalmodel.WidgetDate
	WidgetArray    = internalmodel.WidgetArray
	WidgetObject   = internalmodel.WidgetObject
	WidgetRecord   = internalmodel.WidgetRecord
)

type Complexity = internalmodel.Complexity

const (
	ComplexitySimple   = internalmodel.ComplexitySimple
	ComplexityModerate = internalmodel.ComplexityModerate
	ComplexityComplex  = internalmodel.ComplexityComplex
)

const (
	ValidationRuleRequired   = internalmodel.ValidationRuleRequired
	ValidationRuleMin        = internalmodel.ValidationRuleMin
	ValidationRuleMax        = internalmodel.ValidationRuleMax
	ValidationRuleMinLength  = internalmodel.ValidationRuleMinLength
	ValidationRuleMaxLength  = internalmodel.ValidationRuleMaxLength
	ValidationRulePattern    = internalmodel.ValidationRulePattern
	ValidationRuleEmail      = internalmodel.ValidationRuleEmail
	ValidationRuleURL        = internalmodel.ValidationRuleURL
	ValidationRuleInteger    = internalmodel.ValidationRuleInteger
	ValidationRuleMultipleOf = internalmodel.ValidationRuleMultipleOf
	ValidationRuleMinItems   = internalmodel.ValidationRuleMinItems
	ValidationRuleMaxItems   = internalmodel.ValidationRuleMaxItems
)

type ValidationRule = internalmodel.ValidationRule
type Option = internalmodel.Option
type FieldConfig = internalmodel.FieldConfig
type FieldDefinition = internalmodel.FieldDefinition
type SchemaAnalysis = internalmodel.SchemaAnalysis

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	apperrors "flagcli/internal/errors"
)

// Job holds the parameters of one flagging run.
type Job struct {
	// FileDir is searched for the newest .xlsx input.
	FileDir string `yaml:"file_dir" json:"file_dir" validate:"required"`
	// ConditionsPath is the rules workbook: an .xlsx path or sheets://<id>.
	ConditionsPath string `yaml:"conditions_path" json:"conditions_path" validate:"required,workbook"`
	OutputPath     string `yaml:"output_path" json:"output_path" validate:"required,output"`
	// NumRowsSkip counts rows directly below the header that are not data.
	NumRowsSkip int      `yaml:"num_rows_skip" json:"num_rows_skip" validate:"gte=0"`
	UniqueKeys  []string `yaml:"unique_keys" json:"unique_keys" validate:"required,min=1,dive,required"`
	// ProductFilters maps a column to substrings that must all appear in it.
	ProductFilters  map[string][]string `yaml:"product_filters" json:"product_filters,omitempty" validate:"omitempty,dive,keys,required,endkeys,min=1,dive,required"`
	DropDups        bool                `yaml:"drop_dups" json:"drop_dups"`
	DuplicateSubset []string            `yaml:"duplicate_subset" json:"duplicate_subset,omitempty" validate:"omitempty,dive,required"`
}

// NewValidator returns a validator that knows the job rules and reports
// fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("workbook", isWorkbookLocation)
	_ = v.RegisterValidation("output", isOutputPath)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var jobValidator = NewValidator()

// Validate checks the job against its struct rules. Problems are returned as
// a configuration error whose context lists one message per field.
func (j *Job) Validate() error {
	err := jobValidator.Struct(j)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewConfigError("invalid job", err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, FormatFieldError(fe))
	}
	sort.Strings(problems)
	return apperrors.NewConfigError("invalid job: "+strings.Join(problems, "; "), nil).
		WithContext("fields", problems)
}

// FormatFieldError renders a validation failure as a sentence.
func FormatFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "workbook":
		return fmt.Sprintf("%s must be an .xlsx path or sheets://<id>", field)
	case "output":
		return fmt.Sprintf("%s must end in .xlsx or .csv", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func isWorkbookLocation(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.HasPrefix(s, "sheets://") {
		return len(s) > len("sheets://")
	}
	switch strings.ToLower(filepath.Ext(s)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

func isOutputPath(fl validator.FieldLevel) bool {
	switch strings.ToLower(filepath.Ext(fl.Field().String())) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	return false
}

// LoadJob reads a job from a YAML or JSON file (chosen by extension) and
// validates it.
func LoadJob(path string) (*Job, error) {
	job, err := ReadJob(path)
	if err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// ReadJob parses a job file without validating it, for callers that complete
// the job from flags or saved settings first.
func ReadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewIOError("failed to read job file", err).WithContext("path", path)
	}

	var job Job
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &job)
	} else {
		err = yaml.Unmarshal(data, &job)
	}
	if err != nil {
		return nil, apperrors.NewConfigError("failed to parse job file", err).WithContext("path", path)
	}
	return &job, nil
}

// Merge fills empty fields of j from defaults. Booleans and NumRowsSkip are
// taken from j as given.
func (j Job) Merge(defaults Job) Job {
	if j.FileDir == "" {
		j.FileDir = defaults.FileDir
	}
	if j.ConditionsPath == "" {
		j.ConditionsPath = defaults.ConditionsPath
	}
	if j.OutputPath == "" {
		j.OutputPath = defaults.OutputPath
	}
	if len(j.UniqueKeys) == 0 {
		j.UniqueKeys = defaults.UniqueKeys
	}
	if len(j.ProductFilters) == 0 {
		j.ProductFilters = defaults.ProductFilters
	}
	if len(j.DuplicateSubset) == 0 {
		j.DuplicateSubset = defaults.DuplicateSubset
	}
	return j
}

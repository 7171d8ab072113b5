package analysis

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TimeOrder controls how a stage treats timestamps that go backwards
type TimeOrder string

const (
	// TimeOrderDefault defers to the stage's configured policy
	TimeOrderDefault TimeOrder = ""
	// TimeOrderStrict rejects input whose timestamps decrease
	TimeOrderStrict TimeOrder = "strict"
	// TimeOrderLenient accepts input in whatever order it arrives
	TimeOrderLenient TimeOrder = "lenient"
)

// Junction keys for the refiner
const (
	JunctionByEdge = "edge"
	JunctionByWay  = "way"
)

// Reference trajectory policies for the combiner
const (
	ReferenceLongest = "longest"
	ReferenceFirst   = "first"
)

// Proximity metrics for the combiner
const (
	ProximityPoint   = "point"
	ProximitySegment = "segment"
)

// CurveConfig configures the curve interpolator
type CurveConfig struct {
	// Threshold is the bearing change in degrees that marks a curve
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"gt=0"`
	// Subdivisions is the number of points inserted per densified segment
	Subdivisions int `yaml:"subdivisions" json:"subdivisions" validate:"gte=1,lte=1000"`
	// Exclusive switches the threshold comparison from >= to >
	Exclusive bool      `yaml:"exclusive" json:"exclusive"`
	TimeOrder TimeOrder `yaml:"timeOrder" json:"timeOrder" validate:"omitempty,oneof=strict lenient"`
}

// DefaultCurveConfig returns the curve settings used when none are configured
func DefaultCurveConfig() CurveConfig {
	return CurveConfig{
		Threshold:    45,
		Subdivisions: 4,
		TimeOrder:    TimeOrderStrict,
	}
}

// Validate checks the curve settings
func (c CurveConfig) Validate() error {
	return validateStruct(c)
}

// RefineConfig configures the trajectory refiner
type RefineConfig struct {
	// Tolerance is the maximum distance in meters between a point and its road
	Tolerance           float64 `yaml:"tolerance" json:"tolerance" validate:"gte=0"`
	DeleteOffRoadPoints bool    `yaml:"deleteOffRoadPoints" json:"deleteOffRoadPoints"`
	// JunctionKey decides what counts as a change of road: the edge or its source way
	JunctionKey string `yaml:"junctionKey" json:"junctionKey" validate:"omitempty,oneof=edge way"`
	// BridgeDisjointEdges inserts the closest-approach midpoint when two
	// consecutive edges neither share a node nor cross
	BridgeDisjointEdges bool      `yaml:"bridgeDisjointEdges" json:"bridgeDisjointEdges"`
	TimeOrder           TimeOrder `yaml:"timeOrder" json:"timeOrder" validate:"omitempty,oneof=strict lenient"`
}

// DefaultRefineConfig returns the refine settings used when none are configured
func DefaultRefineConfig() RefineConfig {
	return RefineConfig{
		Tolerance:           10,
		DeleteOffRoadPoints: false,
		JunctionKey:         JunctionByEdge,
		BridgeDisjointEdges: true,
		TimeOrder:           TimeOrderStrict,
	}
}

// Validate checks the refine settings
func (c RefineConfig) Validate() error {
	return validateStruct(c)
}

// CombineConfig configures the trajectory combiner
type CombineConfig struct {
	Reference string `yaml:"reference" json:"reference" validate:"omitempty,oneof=longest first"`
	Proximity string `yaml:"proximity" json:"proximity" validate:"omitempty,oneof=point segment"`
	// Candidates is how many kd-tree neighbours are re-ranked by geodesic distance
	Candidates int `yaml:"candidates" json:"candidates" validate:"gte=1,lte=64"`
}

// DefaultCombineConfig returns the combine settings used when none are configured
func DefaultCombineConfig() CombineConfig {
	return CombineConfig{
		Reference:  ReferenceLongest,
		Proximity:  ProximityPoint,
		Candidates: 8,
	}
}

// Validate checks the combine settings
func (c CombineConfig) Validate() error {
	return validateStruct(c)
}

// DespikeConfig configures the outlier filter
type DespikeConfig struct {
	// MaxSpeed is the highest plausible speed between two fixes, in m/s
	MaxSpeed float64 `yaml:"maxSpeed" json:"maxSpeed" validate:"gt=0"`
	// A fix landing JumpDistance meters or more from its predecessor within
	// JumpTime is a jump
	JumpDistance float64       `yaml:"jumpDistance" json:"jumpDistance" validate:"gte=0"`
	JumpTime     time.Duration `yaml:"jumpTime" json:"jumpTime" validate:"gte=0"`
	TimeOrder    TimeOrder     `yaml:"timeOrder" json:"timeOrder" validate:"omitempty,oneof=strict lenient"`
}

// DefaultDespikeConfig returns the outlier settings used when none are configured
func DefaultDespikeConfig() DespikeConfig {
	return DespikeConfig{
		MaxSpeed:     277.78, // 1000 km/h
		JumpDistance: 1000,
		JumpTime:     10 * time.Second,
		TimeOrder:    TimeOrderStrict,
	}
}

// Validate checks the outlier settings
func (c DespikeConfig) Validate() error {
	return validateStruct(c)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and reports the first failure as a ConfigurationError
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "must satisfy " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &ConfigurationError{Param: fe.Field(), Value: fe.Value(), Reason: reason}
	}
	return &ConfigurationError{Param: "config", Value: s, Reason: err.Error()}
}

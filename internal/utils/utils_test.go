package utils

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/suite"
)

type UtilsTestSuite struct {
	suite.Suite
}

func TestUtilsTestSuite(t *testing.T) {
	suite.Run(t, new(UtilsTestSuite))
}

func (suite *UtilsTestSuite) TestMean() {
	suite.Equal(0.0, Mean(nil))
	suite.InDelta(2.0, Mean([]float64{1, 2, 3}), 1e-12)
}

func (suite *UtilsTestSuite) TestStdDev() {
	suite.Equal(0.0, StdDev([]float64{1}))
	// Sample std of {2, 4, 4, 4, 5, 5, 7, 9} is ~2.138.
	suite.InDelta(2.1381, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-3)
}

func (suite *UtilsTestSuite) TestPercentile() {
	values := []float64{15, 20, 35, 40, 50}

	tests := []struct {
		name string
		p    float64
		want float64
	}{
		{name: "minimum", p: 0, want: 15},
		{name: "maximum", p: 100, want: 50},
		{name: "median", p: 50, want: 35},
		{name: "interpolated", p: 40, want: 26},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.InDelta(tt.want, Percentile(values, tt.p), 1e-9)
		})
	}

	// Input must not be reordered.
	suite.False(sort.Float64sAreSorted(values))
}

func (suite *UtilsTestSuite) TestNormalCDF() {
	suite.InDelta(0.5, NormalCDF(0), 1e-12)
	suite.InDelta(0.8413, NormalCDF(1), 1e-4)
	suite.InDelta(0.0228, NormalCDF(-2), 1e-4)
}

func (suite *UtilsTestSuite) TestParallelMap() {
	squares := ParallelMap(100, 8, func(i int) int { return i * i })

	suite.Require().Len(squares, 100)

	for i, got := range squares {
		suite.Equal(i*i, got)
	}

	suite.Nil(ParallelMap(0, 4, func(i int) int { return i }))
}

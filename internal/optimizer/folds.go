package optimizer

import (
	"time"

	"github.com/quantfold/backtest/pkg/errors"
)

// minFoldSpanDays keeps every train and test window wide enough to hold the
// minimum bar count the simulation needs.
const minFoldSpanDays = 4

// SplitFolds cuts [start, end] into nFolds rolling train/test window pairs
// of equal span: fold i trains on segment i and tests on segment i+1, so
// consecutive folds overlap the way a walk-forward schedule does (fold i's
// test window is fold i+1's training window). The last fold's test window
// extends to end to absorb integer-division remainder days.
func SplitFolds(start, end time.Time, nFolds int) ([]Fold, error) {
	if nFolds < 1 {
		return nil, errors.Newf(errors.ErrCodeNoFolds, "fold count %d must be at least 1", nFolds)
	}

	if !end.After(start) {
		return nil, errors.Newf(errors.ErrCodeInvalidFoldWindows, "end date %s is not after start date %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	totalDays := int(end.Sub(start).Hours() / 24)

	span := totalDays / (nFolds + 1)
	if span < minFoldSpanDays {
		return nil, errors.Newf(errors.ErrCodeInvalidFoldWindows,
			"date range of %d days is too short for %d folds", totalDays, nFolds)
	}

	folds := make([]Fold, nFolds)

	for i := 0; i < nFolds; i++ {
		trainStart := start.AddDate(0, 0, i*span)
		testStart := start.AddDate(0, 0, (i+1)*span)
		testEnd := start.AddDate(0, 0, (i+2)*span)

		if i == nFolds-1 {
			testEnd = end
		}

		folds[i] = Fold{
			TrainStart: trainStart,
			TrainEnd:   testStart,
			TestStart:  testStart,
			TestEnd:    testEnd,
		}
	}

	return folds, nil
}

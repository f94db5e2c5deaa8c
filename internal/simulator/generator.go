package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/simonaseno/nhanes/internal/domain/model"
	"github.com/simonaseno/nhanes/internal/domain/table"
	"github.com/simonaseno/nhanes/pkg/logger"
)

// Survey shape constants.
const (
	firstSurveyYear = 1999
	cycleSpanYears  = 2
	maxCycles       = 26 // one letter suffix per cycle
)

// Participation rates. Demographics cover interview respondents,
// laboratory files only those who also attended the examination.
const (
	demoResponseRate  = 0.95
	labAttendanceRate = 0.85
)

// Laboratory value ranges, mg/dL.
const (
	cholesterolBuckets  = 6
	cholDesirableMin    = 140.0
	cholDesirableRange  = 60.0
	cholBorderlineMin   = 200.0
	cholBorderlineRange = 40.0
	cholHighMin         = 240.0
	cholHighRange       = 80.0
	cholLowMin          = 90.0
	cholLowRange        = 50.0
	triglycerideMin     = 40.0
	triglycerideRange   = 260.0
)

// SI companion conversion constants.
const (
	mmolPerMgdl      = 0.02586
	siRoundingFactor = 100
)

// Demographic value ranges.
const (
	maxAgeYears     = 80
	genderLevels    = 2
	educationLevels = 5
)

// generateWorld synthesizes the per-cycle source tables and their
// registry entries.
func generateWorld(ctx context.Context, config *Config, stats *Stats) (*World, error) {
	if config.Cycles < 1 || config.Cycles > maxCycles {
		return nil, fmt.Errorf("cycles must be between 1 and %d, got %d", maxCycles, config.Cycles)
	}
	if config.RowsPerCycle < 1 {
		return nil, fmt.Errorf("rows per cycle must be positive, got %d", config.RowsPerCycle)
	}

	logger.Get().Info(ctx, "synthesizing survey",
		logger.Int("cycles", config.Cycles),
		logger.Int("rows_per_cycle", config.RowsPerCycle),
		logger.Any("seed", config.Seed))

	rng := rand.New(rand.NewSource(config.Seed))
	world := &World{}

	for cycle := 0; cycle < config.Cycles; cycle++ {
		year := firstSurveyYear + cycle*cycleSpanYears
		label := fmt.Sprintf("%d-%d", year, year+1)
		suffix := string(rune('A' + cycle))

		lab, demo, err := synthesizeCycle(rng, cycle, config.RowsPerCycle)
		if err != nil {
			return nil, fmt.Errorf("cycle %s: %w", label, err)
		}

		world.Lab = append(world.Lab, CycleFile{
			Entry: model.SourceEntry{File: "TCHOL_" + suffix, Cycle: label, Year: strconv.Itoa(year)},
			Table: lab,
		})
		world.Demo = append(world.Demo, CycleFile{
			Entry: model.SourceEntry{File: "DEMO_" + suffix, Cycle: label, Year: strconv.Itoa(year)},
			Table: demo,
		})

		stats.RowsSynthesized += lab.NumRows() + demo.NumRows()
	}

	injectFailures(world, config.FailEvery)
	stats.FilesSynthesized = len(world.Lab) + len(world.Demo)

	logger.Get().Info(ctx, "survey synthesized",
		logger.Int("files", stats.FilesSynthesized),
		logger.Int("rows", stats.RowsSynthesized))

	return world, nil
}

// synthesizeCycle draws one cycle's participants. Later cycles carry
// columns earlier ones lack, which exercises the union and null fill
// behaviour downstream.
func synthesizeCycle(rng *rand.Rand, cycle, rowsPerCycle int) (lab, demo *table.Table, err error) {
	var labSeq, labTC, labTCSI, labTrig []table.Value
	var demoSeq, demoAge, demoGender, demoEduc []table.Value

	base := cycle*rowsPerCycle + 1
	for p := 0; p < rowsPerCycle; p++ {
		seqn := float64(base + p)

		if rng.Float64() < demoResponseRate {
			demoSeq = append(demoSeq, table.Num(seqn))
			demoAge = append(demoAge, table.Num(float64(1+rng.Intn(maxAgeYears))))
			demoGender = append(demoGender, table.Num(float64(1+rng.Intn(genderLevels))))
			if cycle >= 1 {
				demoEduc = append(demoEduc, table.Num(float64(1+rng.Intn(educationLevels))))
			}
		}

		if rng.Float64() < labAttendanceRate {
			tc := drawCholesterol(rng)
			labSeq = append(labSeq, table.Num(seqn))
			labTC = append(labTC, table.Num(tc))
			if cycle >= 1 {
				labTCSI = append(labTCSI, table.Num(toMmol(tc)))
			}
			if cycle >= 2 {
				labTrig = append(labTrig, table.Num(math.Round(triglycerideMin+rng.Float64()*triglycerideRange)))
			}
		}
	}

	labCols := []table.Column{
		{Name: "SEQN", Kind: table.KindNumeric, Cells: labSeq},
		{Name: "LBXTC", Kind: table.KindNumeric, Cells: labTC},
	}
	if cycle >= 1 {
		labCols = append(labCols, table.Column{Name: "LBDTCSI", Kind: table.KindNumeric, Cells: labTCSI})
	}
	if cycle >= 2 {
		labCols = append(labCols, table.Column{Name: "LBXTR", Kind: table.KindNumeric, Cells: labTrig})
	}
	lab, err = table.New(labCols...)
	if err != nil {
		return nil, nil, fmt.Errorf("laboratory table: %w", err)
	}

	demoCols := []table.Column{
		{Name: "SEQN", Kind: table.KindNumeric, Cells: demoSeq},
		{Name: "RIDAGEYR", Kind: table.KindNumeric, Cells: demoAge},
		{Name: "RIAGENDR", Kind: table.KindNumeric, Cells: demoGender},
	}
	if cycle >= 1 {
		demoCols = append(demoCols, table.Column{Name: "DMDEDUC2", Kind: table.KindNumeric, Cells: demoEduc})
	}
	demo, err = table.New(demoCols...)
	if err != nil {
		return nil, nil, fmt.Errorf("demographics table: %w", err)
	}

	return lab, demo, nil
}

// drawCholesterol samples a total cholesterol value with a skewed
// population distribution.
func drawCholesterol(rng *rand.Rand) float64 {
	switch rng.Intn(cholesterolBuckets) {
	case 0, 1, 2:
		// Desirable (140 - 200), most common
		return math.Round(cholDesirableMin + rng.Float64()*cholDesirableRange)
	case 3:
		// Borderline high (200 - 240)
		return math.Round(cholBorderlineMin + rng.Float64()*cholBorderlineRange)
	case 4:
		// High (240 - 320)
		return math.Round(cholHighMin + rng.Float64()*cholHighRange)
	default:
		// Low (90 - 140)
		return math.Round(cholLowMin + rng.Float64()*cholLowRange)
	}
}

// toMmol converts mg/dL to the SI companion value, rounded to two
// decimals.
func toMmol(mgdl float64) float64 {
	return math.Round(mgdl*mmolPerMgdl*siRoundingFactor) / siRoundingFactor
}

// injectFailures marks every Nth file, counting labs before
// demographics, for refusal.
func injectFailures(world *World, failEvery int) {
	if failEvery <= 0 {
		return
	}
	n := 0
	for i := range world.Lab {
		n++
		if n%failEvery == 0 {
			world.Lab[i].Fail = true
		}
	}
	for i := range world.Demo {
		n++
		if n%failEvery == 0 {
			world.Demo[i].Fail = true
		}
	}
}

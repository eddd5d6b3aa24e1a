package analysis

import (
	"fmt"
	"math"
)

// Lap rule thresholds
const (
	autoLapKmTolerance   = 120
	autoLapMileTolerance = 150

	// MinStructuredLaps is the fewest laps that can carry workout structure.
	MinStructuredLaps = 3

	progressionShare     = 0.80
	progressionSlack     = 1.01
	workPaceRatio        = 0.92
	tempoPaceRatio       = 0.92
	minTempoBlockLaps    = 2
	minWorkLaps          = 2
	intervalsMaxCV       = 0.15
	fallbackPaceBand     = 0.05
	longRunDistance      = 15000
	recoveryMaxZone      = 2
	thresholdMinZone     = 4
	tempoZone            = 3
	repRoundingMeters    = 50
	shortWorkRepSeconds  = 60
)

// verdict tells Classify what to do after a rule ran
type verdict int

const (
	pass     verdict = iota // rule does not apply, try the next one
	decide                  // rule produced the classification
	fallBack                // stop lap analysis and use pace/HR fallback
)

type rule struct {
	name string
	eval func(*lapContext) (Classification, verdict)
}

// classifierRules is evaluated in order; the first rule that does not pass wins
var classifierRules = []rule{
	{name: "race_override", eval: raceOverride},
	{name: "require_laps", eval: requireLaps},
	{name: "auto_laps", eval: autoLaps},
	{name: "progression", eval: progression},
	{name: "work_rest", eval: workRest},
}

// lapContext caches derived lap values shared by the rules
type lapContext struct {
	in    ClassifyInput
	laps  []LapSplit
	paces []float64
}

func newLapContext(in ClassifyInput) *lapContext {
	ctx := &lapContext{in: in}
	for _, l := range in.Laps {
		if l.Distance <= 0 || l.Seconds() <= 0 {
			continue
		}
		ctx.laps = append(ctx.laps, l)
		ctx.paces = append(ctx.paces, l.Pace())
	}
	return ctx
}

func raceOverride(ctx *lapContext) (Classification, verdict) {
	if ctx.in.Activity.IsRace {
		return result(RunTypeRace, "", ConfidenceHigh), decide
	}
	return Classification{}, pass
}

func requireLaps(ctx *lapContext) (Classification, verdict) {
	if len(ctx.laps) == 0 {
		return Classification{}, fallBack
	}
	return Classification{}, pass
}

// IsAutoLaps reports whether laps look device generated: two or fewer, or
// every inner lap close to 1 km or 1 mile.
func IsAutoLaps(laps []LapSplit) bool {
	if len(laps) <= 2 {
		return true
	}
	for _, l := range laps[1 : len(laps)-1] {
		nearKm := math.Abs(l.Distance-Distance1K) <= autoLapKmTolerance
		nearMile := math.Abs(l.Distance-Distance1Mile) <= autoLapMileTolerance
		if !nearKm && !nearMile {
			return false
		}
	}
	return true
}

func autoLaps(ctx *lapContext) (Classification, verdict) {
	if IsAutoLaps(ctx.laps) || len(ctx.laps) < MinStructuredLaps {
		return Classification{}, fallBack
	}
	return Classification{}, pass
}

// coreRange drops the first and last lap as warmup/cooldown when there are
// more than four laps.
func coreRange(n int) (start, end int) {
	if n > 4 {
		return 1, n - 1
	}
	return 0, n
}

func progression(ctx *lapContext) (Classification, verdict) {
	start, end := coreRange(len(ctx.paces))
	core := ctx.paces[start:end]
	if len(core) < 2 {
		return Classification{}, pass
	}

	faster := 0
	for i := 1; i < len(core); i++ {
		if core[i] <= core[i-1]*progressionSlack {
			faster++
		}
	}
	// An even-paced run satisfies the slack on every lap; require the core to
	// actually finish faster than it started.
	if core[len(core)-1] >= core[0] {
		return Classification{}, pass
	}
	if float64(faster) >= progressionShare*float64(len(core)-1) {
		return result(RunTypeProgression, "", ConfidenceHigh), decide
	}
	return Classification{}, pass
}

// workMask marks laps meaningfully faster than the median lap pace
func workMask(paces []float64) []bool {
	med := median(paces)
	mask := make([]bool, len(paces))
	for i, p := range paces {
		mask[i] = p <= med*workPaceRatio
	}
	return mask
}

func workRest(ctx *lapContext) (Classification, verdict) {
	mask := workMask(ctx.paces)
	work := 0
	for _, w := range mask {
		if w {
			work++
		}
	}

	if work < minWorkLaps {
		if c, ok := tempoBlock(ctx); ok {
			return c, decide
		}
		return Classification{}, fallBack
	}

	if !alternates(mask, work) {
		return Classification{}, fallBack
	}

	return regularity(ctx, mask), decide
}

// tempoBlock finds the longest contiguous run of laps faster than the tempo
// ratio of easy pace. The block must leave a warmup or cooldown outside it.
func tempoBlock(ctx *lapContext) (Classification, bool) {
	ref := ctx.in.EasyPace
	if ref <= 0 {
		return Classification{}, false
	}

	bestStart, bestLen := -1, 0
	runStart := -1
	for i, p := range ctx.paces {
		if p < ref*tempoPaceRatio {
			if runStart < 0 {
				runStart = i
			}
			if n := i - runStart + 1; n > bestLen {
				bestStart, bestLen = runStart, n
			}
		} else {
			runStart = -1
		}
	}

	if bestLen < minTempoBlockLaps || bestLen == len(ctx.laps) {
		return Classification{}, false
	}

	var dist float64
	var secs int
	for _, l := range ctx.laps[bestStart : bestStart+bestLen] {
		dist += l.Distance
		secs += l.Seconds()
	}
	detail := fmt.Sprintf("%.1fkm @ %s/km", dist/1000, FormatPace(CalculatePacePerKm(dist, float64(secs))))
	return result(RunTypeTempo, detail, ConfidenceHigh), true
}

// alternates checks every work lap touches a rest lap and that the number of
// work/rest transitions is at least the work lap count.
func alternates(mask []bool, work int) bool {
	transitions := 0
	for i := 1; i < len(mask); i++ {
		if mask[i] != mask[i-1] {
			transitions++
		}
	}
	if transitions < work {
		return false
	}

	for i, w := range mask {
		if !w {
			continue
		}
		left := i > 0 && !mask[i-1]
		right := i < len(mask)-1 && !mask[i+1]
		if !left && !right {
			return false
		}
	}
	return true
}

func regularity(ctx *lapContext, mask []bool) Classification {
	var workDist, workSecs []float64
	var restSecs []float64
	first, last := -1, -1
	for i, w := range mask {
		if w {
			if first < 0 {
				first = i
			}
			last = i
			workDist = append(workDist, ctx.laps[i].Distance)
			workSecs = append(workSecs, float64(ctx.laps[i].Seconds()))
		}
	}
	// Recoveries are the rest laps between the first and last rep
	for i := first + 1; i < last; i++ {
		if !mask[i] {
			restSecs = append(restSecs, float64(ctx.laps[i].Seconds()))
		}
	}

	n := len(workDist)
	if coefficientOfVariation(workDist) < intervalsMaxCV {
		detail := fmt.Sprintf("%dx%s", n, repLabel(mean(workDist)))
		return result(RunTypeIntervals, detail, ConfidenceHigh)
	}

	workAvg := mean(workSecs)
	restAvg := mean(restSecs)
	var detail string
	if workAvg < shortWorkRepSeconds {
		detail = fmt.Sprintf("%dx%d/%ds", n, int(math.Round(workAvg)), int(math.Round(restAvg)))
	} else {
		detail = fmt.Sprintf("%dx%s/%smin", n, formatMinutes(workAvg), formatMinutes(restAvg))
	}
	return result(RunTypeFartlek, detail, ConfidenceHigh)
}

// standardRep is a common repeat distance with its matching band
type standardRep struct {
	meters    float64
	tolerance float64
	label     string
}

var standardReps = []standardRep{
	{meters: 1000, tolerance: 100, label: "1km"},
	{meters: 800, tolerance: 60, label: "800m"},
	{meters: 400, tolerance: 40, label: "400m"},
	{meters: 1609, tolerance: 100, label: "1mi"},
	{meters: 2000, tolerance: 150, label: "2km"},
	{meters: 1200, tolerance: 80, label: "1200m"},
}

// repLabel names a repeat distance, falling back to meters rounded to 50
func repLabel(meters float64) string {
	for _, r := range standardReps {
		if math.Abs(meters-r.meters) <= r.tolerance {
			return r.label
		}
	}
	rounded := math.Round(meters/repRoundingMeters) * repRoundingMeters
	return fmt.Sprintf("%dm", int(rounded))
}

// formatMinutes renders seconds as whole minutes, or one decimal below a minute
func formatMinutes(seconds float64) string {
	minutes := seconds / 60
	if minutes >= 1 {
		return fmt.Sprintf("%d", int(math.Round(minutes)))
	}
	return fmt.Sprintf("%.1f", minutes)
}

func paceFallback(in ClassifyInput) Classification {
	a := in.Activity
	pace := a.Pace()
	if pace <= 0 {
		return result(RunTypeUnknown, "", ConfidenceLow)
	}

	ratio := 1.0
	if in.EasyPace > 0 {
		ratio = pace / in.EasyPace
	}

	hasHR := a.AverageHeartrate != nil && *a.AverageHeartrate > 0
	zone := 0
	if hasHR {
		zone = in.Zones.ZoneFor(*a.AverageHeartrate)
	}

	switch {
	case ratio > 1+fallbackPaceBand:
		if hasHR && zone <= recoveryMaxZone {
			return result(RunTypeRecovery, "", ConfidenceMedium)
		}
		return result(RunTypeEasy, "", ConfidenceLow)
	case ratio >= 1-fallbackPaceBand:
		if a.Distance >= longRunDistance {
			return result(RunTypeLongRun, "", ConfidenceMedium)
		}
		return result(RunTypeEasy, "", ConfidenceMedium)
	case hasHR && zone >= thresholdMinZone:
		return result(RunTypeThreshold, "", ConfidenceMedium)
	case hasHR && zone == tempoZone:
		return result(RunTypeTempo, "", ConfidenceMedium)
	case !hasHR && a.Distance >= longRunDistance:
		return result(RunTypeLongRun, "", ConfidenceLow)
	default:
		return result(RunTypeUnknown, "", ConfidenceLow)
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// coefficientOfVariation is the population stddev divided by the mean
func coefficientOfVariation(values []float64) float64 {
	m := mean(values)
	if m == 0 {
		return 0
	}
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq/float64(len(values))) / m
}

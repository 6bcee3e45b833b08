package game

import "math/rand"

// Arena logical size, shared coordinate system with the visualization.
const (
	arenaWidth  = 1200.0
	arenaHeight = 600.0
)

// Spawn sampling: rejection sampling inside the central region with a
// minimum pairwise separation, falling back to center jitter after a fixed
// number of attempts so placement always terminates.
const (
	spawnMinDistance    = 90.0
	spawnCenterMinX     = 380.0
	spawnCenterMaxX     = 820.0
	spawnCenterMinY     = 120.0
	spawnCenterMaxY     = 480.0
	spawnAttempts       = 80
	spawnFallbackJitter = 60.0
)

// Answer regions: O gathers left, X gathers right, TIE holds the center.
const (
	choiceOX      = 300.0
	choiceXX      = 900.0
	choiceRegionY = 300.0
	choiceJitterX = 100.0
	choiceJitterY = 200.0
)

type position struct {
	x float64
	y float64
}

func randomSpawnPosition(rng *rand.Rand, existing []position) position {
	for attempt := 0; attempt < spawnAttempts; attempt++ {
		candidate := position{
			x: spawnCenterMinX + rng.Float64()*(spawnCenterMaxX-spawnCenterMinX),
			y: spawnCenterMinY + rng.Float64()*(spawnCenterMaxY-spawnCenterMinY),
		}
		if separated(candidate, existing) {
			return candidate
		}
	}
	jitter := func() float64 { return (rng.Float64() - 0.5) * spawnFallbackJitter }
	return position{x: arenaWidth/2 + jitter(), y: arenaHeight/2 + jitter()}
}

func separated(candidate position, existing []position) bool {
	for _, p := range existing {
		dx := p.x - candidate.x
		dy := p.y - candidate.y
		if dx*dx+dy*dy < spawnMinDistance*spawnMinDistance {
			return false
		}
	}
	return true
}

// choiceTarget maps an answer to its display region with randomized jitter
// so agents do not stack on a single point.
func choiceTarget(rng *rand.Rand, choice Choice) position {
	switch choice {
	case ChoiceO:
		return position{
			x: choiceOX + (rng.Float64()-0.5)*choiceJitterX,
			y: choiceRegionY + (rng.Float64()-0.5)*choiceJitterY,
		}
	case ChoiceX:
		return position{
			x: choiceXX + (rng.Float64()-0.5)*choiceJitterX,
			y: choiceRegionY + (rng.Float64()-0.5)*choiceJitterY,
		}
	default:
		return position{x: arenaWidth / 2, y: choiceRegionY}
	}
}

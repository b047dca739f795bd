package indicators

import (
	"github.com/wonny/quantscan/internal/contracts"
)

// DefaultProfileBins 매물대 구간 수
const DefaultProfileBins = 20

// ResistanceWallShare is the traded-volume share above which a wall exists
const ResistanceWallShare = 0.15

// VolumeProfile splits [min low, max high] into bins equal bins; a bar's full
// volume counts toward every bin its range overlaps.
func VolumeProfile(bars contracts.Series, bins int) contracts.VolumeProfile {
	if len(bars) == 0 || bins <= 0 {
		return nil
	}
	lo := minOf(bars.Lows())
	hi := maxOf(bars.Highs())
	step := (hi - lo) / float64(bins)

	profile := make(contracts.VolumeProfile, bins)
	total := 0.0
	for i := 0; i < bins; i++ {
		low := lo + step*float64(i)
		high := lo + step*float64(i+1)
		if i == bins-1 {
			high = hi
		}
		vol := 0.0
		for _, b := range bars {
			if b.Low <= high && b.High >= low {
				vol += float64(b.Volume)
			}
		}
		profile[i] = contracts.ProfileBin{
			Low:    low,
			High:   high,
			Center: (low + high) / 2,
			Volume: vol,
		}
		total += vol
	}

	if total < 1 {
		total = 1
	}
	for i := range profile {
		profile[i].Ratio = profile[i].Volume / total
	}
	return profile
}

// Wall is the overhead supply check result
type Wall struct {
	Present    bool    `json:"resistance_wall"`
	SharePct   float64 `json:"share_pct"`
	Assessment string  `json:"assessment"`
}

// CheckResistanceWall sums the volume share of bins centred in
// (current, current*(1+rangePct)]; a wall exists above ResistanceWallShare.
func CheckResistanceWall(profile contracts.VolumeProfile, current, rangePct float64) Wall {
	if len(profile) == 0 {
		return Wall{Assessment: "매물대 데이터 없음"}
	}
	upper := current * (1 + rangePct)

	share := 0.0
	hit := false
	for _, bin := range profile {
		if bin.Center > current && bin.Center <= upper {
			share += bin.Ratio
			hit = true
		}
	}
	if !hit {
		return Wall{Assessment: "매물대 벽 없음 (상승 여력 확보)"}
	}

	w := Wall{
		Present:  share > ResistanceWallShare,
		SharePct: Round(share*100, 2),
	}
	if w.Present {
		w.Assessment = "두터운 매물대 벽 존재 (주의)"
	} else {
		w.Assessment = "매물대 벽 약함 (상승 유리)"
	}
	return w
}

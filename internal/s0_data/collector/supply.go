package collector

import (
	"fmt"
	"math"
	"strings"

	"github.com/wonny/quantscan/internal/contracts"
)

// 거래량 대비 순매수 5%면 가속도 1.0
const (
	accelerationScale     = 20.0
	accelerationThreshold = 2.0
	CalmSupplyLabel       = "수급 완만"
)

// BuildSupplyDemand derives buy flags and acceleration from flow and day volume
func BuildSupplyDemand(flow *contracts.Flow, volume int64) *contracts.SupplyDemand {
	sd := &contracts.SupplyDemand{
		Ticker:  flow.Ticker,
		Details: make(map[string]int64, 3),
	}

	sd.Details["foreign_net"] = flow.ForeignNet
	sd.Details["institution_net"] = flow.InstitutionNet
	sd.Details["program_net"] = flow.ProgramNet

	if flow.ForeignNet > 0 {
		sd.ForeignBuy = true
		sd.BuyCount++
	}
	if flow.InstitutionNet > 0 {
		sd.InstitutionBuy = true
		sd.BuyCount++
	}
	if flow.ProgramNet > 0 {
		sd.ProgramBuy = true
		sd.BuyCount++
	}

	if volume < 1 {
		volume = 1
	}
	// 임계값 비교는 원값, 저장/표시는 소수 1자리
	raw := func(net int64) float64 {
		return math.Abs(float64(net)) / float64(volume) * accelerationScale
	}
	foreign, institution, program := raw(flow.ForeignNet), raw(flow.InstitutionNet), raw(flow.ProgramNet)
	sd.Acceleration = contracts.Acceleration{
		Foreign:     round1(foreign),
		Institution: round1(institution),
		Program:     round1(program),
	}

	var labels []string
	if foreign > accelerationThreshold {
		labels = append(labels, fmt.Sprintf("외인 %.1fx 폭발", foreign))
	}
	if institution > accelerationThreshold {
		labels = append(labels, fmt.Sprintf("기관 %.1fx 폭발", institution))
	}
	if program > accelerationThreshold {
		labels = append(labels, fmt.Sprintf("프로그램 %.1fx 가속", program))
	}
	sd.Acceleration.Label = CalmSupplyLabel
	if len(labels) > 0 {
		sd.Acceleration.Label = strings.Join(labels, ", ")
	}

	return sd
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

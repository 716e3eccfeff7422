package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"rental-parser/models"
	"rental-parser/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate aggregates stored apartments. Price figures ignore listings
// priced 0, area figures ignore listings without an area.
func (s *InsightService) Generate(apartments []*models.Apartment) *models.Stats {
	stats := &models.Stats{
		BySource: make(map[string]int),
	}

	if len(apartments) == 0 {
		return stats
	}

	stats.Total = len(apartments)

	var priced []*models.Apartment
	var areaTotal float64
	var areaCount int

	for _, a := range apartments {
		stats.BySource[string(a.Source)]++
		if a.Price > 0 {
			priced = append(priced, a)
		}
		if a.Area != nil {
			areaTotal += *a.Area
			areaCount++
		}
	}

	if len(priced) > 0 {
		stats.MinPrice = priced[0].Price
		stats.MaxPrice = priced[0].Price
		var total float64
		for _, a := range priced {
			total += a.Price
			if a.Price < stats.MinPrice {
				stats.MinPrice = a.Price
			}
			if a.Price > stats.MaxPrice {
				stats.MaxPrice = a.Price
			}
		}
		stats.AvgPrice = round2(total / float64(len(priced)))
	}
	if areaCount > 0 {
		stats.AvgArea = round2(areaTotal / float64(areaCount))
	}

	s.logger.Debug("[insights] %d apartments, %d priced, %d with area", stats.Total, len(priced), areaCount)
	return stats
}

func (s *InsightService) Print(w io.Writer, st *models.Stats) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 RENTAL LISTINGS STATISTICS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total apartments : \033[1m%d\033[0m\n", st.Total)
	if st.AvgArea > 0 {
		fmt.Fprintf(w, "  Average area     : \033[1m%.2f м²\033[0m\n", st.AvgArea)
	}
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Price Statistics (per month)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if st.AvgPrice > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m%.0f ₽\033[0m\n", st.AvgPrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m%.0f ₽\033[0m\n", st.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m%.0f ₽\033[0m\n", st.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	// Apartments by Source
	fmt.Fprintf(w, "\033[1;33m  Apartments by Source\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(st.BySource) == 0 {
		fmt.Fprintf(w, "  No source data\n")
	} else {
		type sourceCount struct {
			source string
			count  int
		}
		var counts []sourceCount
		for src, cnt := range st.BySource {
			counts = append(counts, sourceCount{src, cnt})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].count == counts[j].count {
				return counts[i].source < counts[j].source
			}
			return counts[i].count > counts[j].count
		})
		for _, sc := range counts {
			fmt.Fprintf(w, "  %-10s %6d\n", sc.source, sc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

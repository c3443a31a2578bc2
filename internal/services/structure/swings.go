package structure

import "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"

// findSwingHighs returns pivot highs: candles whose high exceeds the highs of
// leftBars candles before and rightBars candles after. A pivot at index i is
// only confirmed once candle i+rightBars has closed.
func findSwingHighs(candles []models.Candle, leftBars, rightBars int) []models.PriceLevel {
	var levels []models.PriceLevel
	for i := leftBars; i < len(candles)-rightBars; i++ {
		high := candles[i].High
		pivot := true
		for j := 1; j <= leftBars; j++ {
			if candles[i-j].High >= high {
				pivot = false
				break
			}
		}
		if pivot {
			for j := 1; j <= rightBars; j++ {
				if candles[i+j].High >= high {
					pivot = false
					break
				}
			}
		}
		if pivot {
			levels = append(levels, models.PriceLevel{Price: high, Index: i, Role: models.RoleSwingHigh})
		}
	}
	return levels
}

// findSwingLows mirrors findSwingHighs for pivot lows.
func findSwingLows(candles []models.Candle, leftBars, rightBars int) []models.PriceLevel {
	var levels []models.PriceLevel
	for i := leftBars; i < len(candles)-rightBars; i++ {
		low := candles[i].Low
		pivot := true
		for j := 1; j <= leftBars; j++ {
			if candles[i-j].Low <= low {
				pivot = false
				break
			}
		}
		if pivot {
			for j := 1; j <= rightBars; j++ {
				if candles[i+j].Low <= low {
					pivot = false
					break
				}
			}
		}
		if pivot {
			levels = append(levels, models.PriceLevel{Price: low, Index: i, Role: models.RoleSwingLow})
		}
	}
	return levels
}

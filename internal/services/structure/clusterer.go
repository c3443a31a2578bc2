package structure

import (
	"fmt"
	"sort"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
)

// ClusterLevels groups price levels into disjoint zones. Levels are sorted by
// price and scanned once: a gap to the previous level larger than tolerance
// starts a new cluster, otherwise the level joins the current cluster and the
// centroid advances as a running mean. Every input level lands in exactly one
// cluster; output is ordered by ascending centroid and fully determined by
// input prices and tolerance.
func ClusterLevels(levels []models.PriceLevel, tolerance float64) ([]models.LevelCluster, error) {
	if tolerance < 0 {
		return nil, fmt.Errorf("cluster tolerance %f: %w", tolerance, models.ErrInvalidConfig)
	}
	if len(levels) == 0 {
		return nil, nil
	}

	sorted := make([]models.PriceLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	clusters := make([]models.LevelCluster, 0, len(sorted))
	current := models.LevelCluster{
		Centroid: sorted[0].Price,
		Strength: 1,
		Levels:   []models.PriceLevel{sorted[0]},
	}

	for i := 1; i < len(sorted); i++ {
		lv := sorted[i]
		if lv.Price-sorted[i-1].Price > tolerance {
			clusters = append(clusters, current)
			current = models.LevelCluster{
				Centroid: lv.Price,
				Strength: 1,
				Levels:   []models.PriceLevel{lv},
			}
			continue
		}
		current.Levels = append(current.Levels, lv)
		current.Strength++
		current.Centroid += (lv.Price - current.Centroid) / float64(current.Strength)
	}
	clusters = append(clusters, current)

	return clusters, nil
}

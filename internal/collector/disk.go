package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// removablePrefixes точки монтирования внешних томов
var removablePrefixes = []string{"/Volumes/", "/media/", "/run/media/"}

// Disks собирает метрики всех физических томов
func (c *Collector) Disks(ctx context.Context) (*DisksOverview, error) {
	partitions, err := c.system.Partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk partitions: %w", err)
	}

	records := make([]DiskRecord, 0, len(partitions))
	for _, p := range partitions {
		usage, err := c.system.Usage(ctx, p.Mountpoint)
		if err != nil {
			c.logger.Debug("Skipping partition without usage",
				zap.String("mount_point", p.Mountpoint),
				zap.Error(err))
			continue
		}

		total := usage.Total
		available := usage.Free
		used := saturatingSub(total, available)

		records = append(records, DiskRecord{
			Name:           p.Device,
			MountPoint:     p.Mountpoint,
			TotalBytes:     total,
			AvailableBytes: available,
			UsedBytes:      used,
			UsedPercentage: percentOf(float64(used), float64(total)),
			FileSystem:     p.Fstype,
			IsRemovable:    IsRemovableMount(p.Mountpoint),
		})
	}

	return BuildDisksOverview(records), nil
}

// BuildDisksOverview сортирует тома по размеру, выбирает основной и считает
// итоги по несъемным томам
func BuildDisksOverview(records []DiskRecord) *DisksOverview {
	disks := make([]DiskRecord, len(records))
	copy(disks, records)

	sort.SliceStable(disks, func(i, j int) bool {
		if disks[i].TotalBytes != disks[j].TotalBytes {
			return disks[i].TotalBytes > disks[j].TotalBytes
		}
		return disks[i].MountPoint < disks[j].MountPoint
	})

	overview := &DisksOverview{AllDisks: disks}

	for i := range disks {
		if disks[i].MountPoint == "/" {
			primary := disks[i]
			overview.Primary = &primary
			break
		}
	}
	if overview.Primary == nil && len(disks) > 0 {
		primary := disks[0]
		overview.Primary = &primary
	}

	for _, d := range disks {
		if d.IsRemovable {
			continue
		}
		overview.TotalSpaceBytes += d.TotalBytes
		overview.TotalAvailableBytes += d.AvailableBytes
		overview.TotalUsedBytes += d.UsedBytes
	}
	overview.TotalUsedPercentage = percentOf(float64(overview.TotalUsedBytes), float64(overview.TotalSpaceBytes))

	return overview
}

// IsRemovableMount эвристика съемного тома по точке монтирования
func IsRemovableMount(mountPoint string) bool {
	for _, prefix := range removablePrefixes {
		if strings.HasPrefix(mountPoint, prefix) {
			return true
		}
	}
	return false
}

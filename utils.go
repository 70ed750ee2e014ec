package soilie

import (
	"fmt"
	"os"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
)

// downsamplePointCloud downsamples a point cloud to approximately the target number of points.
// Returns the downsampled point cloud.
func downsamplePointCloud(logger logging.Logger, cloud pointcloud.PointCloud, targetPoints int) pointcloud.PointCloud {
	if cloud.Size() <= targetPoints {
		return cloud
	}
	logger.Infof("Point cloud has %d points, downsampling to ~%d...", cloud.Size(), targetPoints)

	downsampled := pointcloud.New()
	step := cloud.Size() / targetPoints
	if step < 1 {
		step = 1
	}
	i := 0
	cloud.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		if i%step == 0 {
			err := downsampled.Set(p, d)
			if err != nil {
				logger.Warnf("Failed to add point: %v", err)
			}
		}
		i++
		return true
	})

	logger.Infof("Downsampled to %d points", downsampled.Size())
	return downsampled
}

// savePointCloudToPCD writes a point cloud to a PCD file in binary format.
func savePointCloudToPCD(cloud pointcloud.PointCloud, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if err := pointcloud.ToPCD(cloud, file, pointcloud.PCDBinary); err != nil {
		return fmt.Errorf("write PCD: %w", err)
	}

	return nil
}

package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/scape"
)

var trajectoryHeader = []string{"time", "position", "velocity", "force"}

// WriteTrajectoryCSV emits one row per tick, the format plotting and
// animation tools consume.
func WriteTrajectoryCSV(w io.Writer, traj scape.Trajectory) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(trajectoryHeader); err != nil {
		return err
	}
	for _, s := range traj {
		if err := writer.Write([]string{
			strconv.FormatFloat(s.Time, 'f', -1, 64),
			strconv.FormatFloat(s.Position, 'f', -1, 64),
			strconv.FormatFloat(s.Velocity, 'f', -1, 64),
			strconv.FormatFloat(s.Force, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadTrajectoryCSV(r io.Reader) (scape.Trajectory, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(trajectoryHeader)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return scape.Trajectory{}, nil
		}
		return nil, err
	}
	for i, name := range trajectoryHeader {
		if header[i] != name {
			return nil, fmt.Errorf("trajectory column %d: got %q want %q", i, header[i], name)
		}
	}

	traj := scape.Trajectory{}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		values := make([]float64, len(record))
		for i, field := range record {
			values[i], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("trajectory row %d column %s: %w", row, trajectoryHeader[i], err)
			}
		}
		traj = append(traj, scape.Sample{Time: values[0], Position: values[1], Velocity: values[2], Force: values[3]})
	}
	return traj, nil
}

package core

import (
	"fmt"
	"time"

	"github.com/matchvision/vidpipe/internal/models"
)

// Snapshot is the serializable checkpoint state of a pipeline. It carries
// everything needed to rebuild the aggregate's control state except the
// stage handles, which the caller supplies on restore.
type Snapshot struct {
	PipelineID        string                    `json:"pipeline_id"`
	VideoID           string                    `json:"video_id"`
	Status            Status                    `json:"status"`
	Configuration     Configuration             `json:"configuration"`
	StageOrder        []string                  `json:"stage_order"`
	CurrentStageIndex int                       `json:"current_stage_index"`
	StageResults      map[string]StageResult    `json:"stage_results,omitempty"`
	RetryCounts       map[string]int            `json:"retry_counts,omitempty"`
	CheckpointData    map[string]map[string]any `json:"checkpoint_data,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// Snapshot captures the aggregate state under one lock hold. Restoring the
// snapshot with matching stage handles yields a pipeline equal to this one
// in all persistent fields.
func (p *Pipeline) Snapshot() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := &Snapshot{
		PipelineID:        p.id.String(),
		VideoID:           p.videoID.String(),
		Status:            p.status,
		Configuration:     p.config,
		StageOrder:        append([]string(nil), p.stageOrder...),
		CurrentStageIndex: p.currentStageIndex,
		CreatedAt:         p.createdAt,
		UpdatedAt:         p.updatedAt,
	}
	if len(p.stageResults) > 0 {
		snap.StageResults = make(map[string]StageResult, len(p.stageResults))
		for k, v := range p.stageResults {
			snap.StageResults[k] = v
		}
	}
	if len(p.retryCounts) > 0 {
		snap.RetryCounts = make(map[string]int, len(p.retryCounts))
		for k, v := range p.retryCounts {
			snap.RetryCounts[k] = v
		}
	}
	if len(p.checkpointData) > 0 {
		snap.CheckpointData = make(map[string]map[string]any, len(p.checkpointData))
		for k, v := range p.checkpointData {
			snap.CheckpointData[k] = v
		}
	}
	return snap
}

// Restore rebuilds a pipeline from a snapshot. The stage handles must match
// the snapshot's stage order exactly. Restoration records no events: it is
// side-effect-free on the event bus.
func Restore(snap *Snapshot, stages []Stage) (*Pipeline, error) {
	if len(stages) != len(snap.StageOrder) {
		return nil, fmt.Errorf("%w: snapshot has %d stages, got %d",
			ErrIncompatibleStages, len(snap.StageOrder), len(stages))
	}
	for i, s := range stages {
		if s.Name() != snap.StageOrder[i] {
			return nil, fmt.Errorf("%w: position %d is %s, snapshot expects %s",
				ErrIncompatibleStages, i, s.Name(), snap.StageOrder[i])
		}
	}

	id, err := models.ParsePipelineID(snap.PipelineID)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline ID in snapshot: %w", err)
	}
	videoID, err := models.ParseVideoID(snap.VideoID)
	if err != nil {
		return nil, fmt.Errorf("invalid video ID in snapshot: %w", err)
	}

	p := &Pipeline{
		id:                id,
		videoID:           videoID,
		config:            snap.Configuration,
		status:            snap.Status,
		stages:            stages,
		stageOrder:        append([]string(nil), snap.StageOrder...),
		currentStageIndex: snap.CurrentStageIndex,
		stageResults:      make(map[string]StageResult, len(snap.StageResults)),
		retryCounts:       make(map[string]int, len(snap.RetryCounts)),
		checkpointData:    make(map[string]map[string]any, len(snap.CheckpointData)),
		createdAt:         snap.CreatedAt,
		updatedAt:         snap.UpdatedAt,
	}
	for k, v := range snap.StageResults {
		p.stageResults[k] = v
	}
	for k, v := range snap.RetryCounts {
		p.retryCounts[k] = v
	}
	for k, v := range snap.CheckpointData {
		p.checkpointData[k] = v
	}
	return p, nil
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSections_EmptyAndNull(t *testing.T) {
	s, err := ParseSections(nil)
	require.NoError(t, err)
	require.Nil(t, s)

	s, err = ParseSections([]byte("null"))
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestParseSections_UnknownKeysIgnored(t *testing.T) {
	raw := []byte(`{
		"work_schedule": {"start": "07:00"},
		"crew": {"size": 8},
		"job_hazard_analysis": {
			"tasks": [
				{"id": "task-1", "hazards": [
					{"id": "haz-1", "isApplicable": true, "controls": [
						{"id": "ctl-1", "implemented": false, "not_implemented_reason": "no materials"}
					]}
				]}
			]
		}
	}`)
	s, err := ParseSections(raw)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NotNil(t, s.JobHazardAnalysis)
	require.Len(t, s.JobHazardAnalysis.Tasks, 1)

	h := s.JobHazardAnalysis.Tasks[0].Hazards[0]
	require.NotNil(t, h.IsApplicable)
	require.True(t, *h.IsApplicable)

	c := h.Controls[0]
	require.NotNil(t, c.Implemented)
	require.False(t, *c.Implemented)
	require.Equal(t, "no materials", c.NotImplementedReason)
}

func TestParseSections_MissingSubtrees(t *testing.T) {
	s, err := ParseSections([]byte(`{"work_schedule": {}}`))
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Nil(t, s.JobHazardAnalysis)

	s, err = ParseSections([]byte(`{"job_hazard_analysis": {}}`))
	require.NoError(t, err)
	require.NotNil(t, s.JobHazardAnalysis)
	require.Empty(t, s.JobHazardAnalysis.Tasks)
	require.Empty(t, s.JobHazardAnalysis.SiteConditions)
}

func TestParseSections_MissingFlagsStayNil(t *testing.T) {
	// isApplicable / implemented 缺失时必须保持 nil（与 false 区分）
	raw := []byte(`{
		"job_hazard_analysis": {
			"site_conditions": [
				{"id": "sc-1", "hazards": [
					{"id": "haz-1", "controls": [{"id": "ctl-1"}]}
				]}
			]
		}
	}`)
	s, err := ParseSections(raw)
	require.NoError(t, err)
	h := s.JobHazardAnalysis.SiteConditions[0].Hazards[0]
	require.Nil(t, h.IsApplicable)
	require.Nil(t, h.Controls[0].Implemented)
}

func TestParseSections_Malformed(t *testing.T) {
	_, err := ParseSections([]byte(`{not json`))
	require.Error(t, err)
}

func TestDateWindowIntersect(t *testing.T) {
	d := func(day int) DateWindow {
		return NewDateWindow(NewDate(2024, 8, day), NewDate(2024, 8, day+9))
	}

	w := d(1).Intersect(d(5))
	require.True(t, w.Start.Equal(NewDate(2024, 8, 5)))
	require.True(t, w.End.Equal(NewDate(2024, 8, 10)))

	// 无界侧不收缩对方
	open := DateWindow{}
	w = open.Intersect(d(5))
	require.True(t, w.Start.Equal(NewDate(2024, 8, 5)))
	require.True(t, w.End.Equal(NewDate(2024, 8, 14)))

	// 不相交区间为空
	require.True(t, d(1).Intersect(d(20)).IsEmpty())
}

func TestDateWindowContains(t *testing.T) {
	w := NewDateWindow(NewDate(2024, 8, 5), NewDate(2024, 8, 10))

	// 边界含端点
	require.True(t, w.Contains(NewDate(2024, 8, 5)))
	require.True(t, w.Contains(NewDate(2024, 8, 10)))
	require.False(t, w.Contains(NewDate(2024, 8, 4)))
	require.False(t, w.Contains(NewDate(2024, 8, 11)))

	// 零值窗口包含一切
	require.True(t, DateWindow{}.Contains(NewDate(1999, 1, 1)))
}

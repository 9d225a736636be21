package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectionsTotalByLabel(t *testing.T) {
	c := CollectionsTotal.WithLabelValues("expression", "reconciled")
	before := testutil.ToFloat64(c)

	c.Inc()
	c.Inc()

	assert.Equal(t, before+2, testutil.ToFloat64(c))
	assert.Equal(t, float64(0), testutil.ToFloat64(CollectionsTotal.WithLabelValues("expression", "unused_status")))
}

func TestMembersChangedAdds(t *testing.T) {
	c := MembersChanged.WithLabelValues("added")
	before := testutil.ToFloat64(c)

	c.Add(5)

	assert.Equal(t, before+5, testutil.ToFloat64(c))
}

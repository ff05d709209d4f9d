package branches

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisercms/wiser-api/pkg/models"
)

func TestParseAddLinkRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  models.HistoryRecord
		want    addLinkRecord
		wantErr bool
	}{
		{
			name:   "type and ordering",
			record: models.HistoryRecord{ItemID: 10, NewValue: "20", Field: "1,5"},
			want:   addLinkRecord{SourceItemID: 20, DestinationItemID: 10, LinkType: 1, Ordering: 5},
		},
		{
			name:   "type only",
			record: models.HistoryRecord{ItemID: 10, NewValue: "20", Field: "3"},
			want:   addLinkRecord{SourceItemID: 20, DestinationItemID: 10, LinkType: 3},
		},
		{
			name:   "empty field",
			record: models.HistoryRecord{ItemID: 10, NewValue: "20", Field: ""},
			want:   addLinkRecord{SourceItemID: 20, DestinationItemID: 10},
		},
		{
			name:   "whitespace tolerated",
			record: models.HistoryRecord{ItemID: 10, NewValue: " 20 ", Field: " 1 , 5 "},
			want:   addLinkRecord{SourceItemID: 20, DestinationItemID: 10, LinkType: 1, Ordering: 5},
		},
		{
			name:    "source id not numeric",
			record:  models.HistoryRecord{ItemID: 10, NewValue: "twenty", Field: "1,5"},
			wantErr: true,
		},
		{
			name:    "link type not numeric",
			record:  models.HistoryRecord{ItemID: 10, NewValue: "20", Field: "x,5"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAddLinkRecord(tt.record)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseRemoveLinkRecord(t *testing.T) {
	got, err := parseRemoveLinkRecord(models.HistoryRecord{ItemID: 10, OldValue: "20", Field: "4"})
	require.NoError(t, err)
	assert.Equal(t, removeLinkRecord{SourceItemID: 20, DestinationItemID: 10, LinkType: 4}, *got)

	_, err = parseRemoveLinkRecord(models.HistoryRecord{ItemID: 10, OldValue: "", Field: "4"})
	require.Error(t, err)
}

func TestFileReferenceColumn(t *testing.T) {
	assert.Equal(t, "item_id", fileReferenceColumn(models.HistoryRecord{OldValue: "item_id"}))
	assert.Equal(t, "itemlink_id", fileReferenceColumn(models.HistoryRecord{OldValue: "itemlink_id"}))
	assert.Equal(t, "itemlink_id", fileReferenceColumn(models.HistoryRecord{OldValue: " ITEMLINK_ID "}))
	assert.Equal(t, "item_id", fileReferenceColumn(models.HistoryRecord{OldValue: ""}))
	assert.Equal(t, "item_id", fileReferenceColumn(models.HistoryRecord{OldValue: "something_else"}))
}

func TestSyncUserName(t *testing.T) {
	assert.Equal(t, "alice (Sync from dev)", syncUserName("alice", "dev"))
	assert.Equal(t, "wiser (Sync from dev)", syncUserName("", "dev"))

	// long branch names fall back to the short form
	longBranch := strings.Repeat("z", 60)
	assert.Equal(t, "alice (Sync)", syncUserName("alice", longBranch))

	// a long actor is hard truncated to the column width
	longActor := strings.Repeat("a", 60)
	got := syncUserName(longActor, "dev")
	assert.Len(t, got, maxSyncUserNameLength)
}

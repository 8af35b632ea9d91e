package awsmeta_test

import (
	"encoding/json"
	"testing"

	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringList_UnmarshalScalar(t *testing.T) {
	t.Parallel()

	var list awsmeta.StringList

	err := json.Unmarshal([]byte(`"NextToken"`), &list)
	require.NoError(t, err)
	assert.Equal(t, awsmeta.StringList{"NextToken"}, list)
}

func TestStringList_UnmarshalSequence(t *testing.T) {
	t.Parallel()

	var list awsmeta.StringList

	err := json.Unmarshal([]byte(`["Marker", "TypeMarker"]`), &list)
	require.NoError(t, err)
	assert.Equal(t, awsmeta.StringList{"Marker", "TypeMarker"}, list)
}

func TestOperationModel_Paginable(t *testing.T) {
	t.Parallel()

	model := testModel()

	listOp, err := model.Operation("ListTables")
	require.NoError(t, err)
	assert.True(t, listOp.Paginable())

	describeOp, err := model.Operation("DescribeTable")
	require.NoError(t, err)
	assert.False(t, describeOp.Paginable())
}

func TestServiceModel_OperationSetsName(t *testing.T) {
	t.Parallel()

	model := testModel()

	op, err := model.Operation("DescribeTable")
	require.NoError(t, err)
	assert.Equal(t, "DescribeTable", op.Name)
}

func TestServiceModel_OperationUnknown(t *testing.T) {
	t.Parallel()

	model := testModel()

	_, err := model.Operation("NoSuchOperation")
	require.Error(t, err)
	assert.True(t, awsmeta.IsValidation(err))
	assert.Contains(t, err.Error(), "NoSuchOperation")
}

func TestServiceModel_WaiterUnknown(t *testing.T) {
	t.Parallel()

	model := testModel()

	_, err := model.Waiter("NoSuchWaiter")
	require.Error(t, err)
	assert.True(t, awsmeta.IsValidation(err))
}

func TestResult_Get(t *testing.T) {
	t.Parallel()

	result := &awsmeta.Result{
		Output: map[string]interface{}{"TableNames": []interface{}{"a", "b"}},
	}

	value, ok := result.Get("TableNames")
	assert.True(t, ok)
	assert.Len(t, value, 2)

	_, ok = result.Get("Missing")
	assert.False(t, ok)

	var nilResult *awsmeta.Result

	_, ok = nilResult.Get("TableNames")
	assert.False(t, ok)
}

func TestResult_Search(t *testing.T) {
	t.Parallel()

	result := &awsmeta.Result{
		Output: map[string]interface{}{
			"Table": map[string]interface{}{"TableStatus": "ACTIVE"},
		},
	}

	value, err := result.Search("Table.TableStatus")
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", value)

	value, err = result.Search("Table.Missing")
	require.NoError(t, err)
	assert.Nil(t, value)

	_, err = result.Search("Table.[")
	require.Error(t, err)

	var nilResult *awsmeta.Result

	value, err = nilResult.Search("Table.TableStatus")
	require.NoError(t, err)
	assert.Nil(t, value)
}

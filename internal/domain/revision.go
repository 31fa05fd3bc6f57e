package domain

import "time"

type ModType string

const (
	ModTypeExtract       ModType = "extract"
	ModTypeAssign        ModType = "assign"
	ModTypeReorder       ModType = "reorder"
	ModTypeMove          ModType = "move"
	ModTypeSwap          ModType = "swap"
	ModTypeRemoveTask    ModType = "remove_task"
	ModTypeAddCleaner    ModType = "add_cleaner"
	ModTypeRemoveCleaner ModType = "remove_cleaner"
	ModTypeConfirm       ModType = "confirm"
	ModTypeReset         ModType = "reset"
	ModTypeRollback      ModType = "rollback"
)

// EditDetail 是单字段修改的审计信息，只用于前端展示修改记录
type EditDetail struct {
	EditedField string `json:"editedField"`
	OldValue    string `json:"oldValue"`
	NewValue    string `json:"newValue"`
}

// Revision 是某个工作日的一条不可变历史记录，编号从 1 开始逐次加一
type Revision struct {
	WorkDate   string      `json:"workDate"`
	Number     int64       `json:"number"`
	Snapshot   *Snapshot   `json:"snapshot"`
	Author     string      `json:"author"`
	ModType    ModType     `json:"modType"`
	EditDetail *EditDetail `json:"editDetail"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// CurrentSnapshot 是某个工作日的当前投影，内容永远等于编号最大的那条 Revision
type CurrentSnapshot struct {
	WorkDate     string    `json:"workDate"`
	Snapshot     *Snapshot `json:"snapshot"`
	LastRevision int64     `json:"lastRevision"`
	Author       string    `json:"author"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ConfirmedExport 是确认排班时落盘的一份独立快照，确认后不再变化
type ConfirmedExport struct {
	WorkDate  string    `json:"workDate"`
	Revision  int64     `json:"revision"`
	Snapshot  *Snapshot `json:"snapshot"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

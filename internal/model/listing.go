package model

import (
	"encoding/json"
	"time"
)

// Coordinates 表示建筑坐标。
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Building 表示上游 buildings 映射中的一条建筑基础信息。
// 字段名与上游 KV 存储的 JSON 键保持一致（camelCase）。
type Building struct {
	Address          string       `json:"address"`
	NearbyStation    string       `json:"nearbyStation"`
	Coordinates      *Coordinates `json:"coordinates"`
	Region           string       `json:"region"`
	CompletionYear   string       `json:"completionYear"`
	TotalFloors      string       `json:"totalFloors"`
	TypicalFloorArea string       `json:"typicalFloorArea"`
}

// Vacancy 表示上游 vacancies 映射中的一条空置记录。
type Vacancy struct {
	BuildingName  string  `json:"buildingName"`
	Floor         string  `json:"floor"`
	ExclusiveArea float64 `json:"exclusiveArea"`
	RentArea      float64 `json:"rentArea"`
	Source        string  `json:"source"`
	PageImageURL  string  `json:"pageImageUrl"`
	PageNum       int     `json:"pageNum"`
	DocumentID    string  `json:"documentId"`
	MoveInDate    string  `json:"moveInDate"`
	PublishDate   string  `json:"publishDate"`
	DepositPy     string  `json:"depositPy"`
	RentPy        string  `json:"rentPy"`
	MaintenancePy string  `json:"maintenancePy"`
}

// Listing 是合并后的展示记录：空置信息 + 冗余的建筑信息。
// ID 形如 {buildingId}_{vacancyKey}。
type Listing struct {
	ID         string `json:"id"`
	BuildingID string `json:"buildingId"`
	VacancyKey string `json:"vacancyKey"`

	BuildingName  string  `json:"buildingName"`
	Floor         string  `json:"floor"`
	ExclusiveArea float64 `json:"exclusiveArea"`
	RentArea      float64 `json:"rentArea"`
	Source        string  `json:"source"`
	PageImageURL  string  `json:"pageImageUrl"`
	PageNum       int     `json:"pageNum"`
	DocumentID    string  `json:"documentId"`
	MoveInDate    string  `json:"moveInDate"`
	PublishDate   string  `json:"publishDate"`
	DepositPy     string  `json:"depositPy"`
	RentPy        string  `json:"rentPy"`
	MaintenancePy string  `json:"maintenancePy"`

	Address          string       `json:"address"`
	NearbyStation    string       `json:"nearbyStation"`
	Coordinates      *Coordinates `json:"coordinates"`
	Region           string       `json:"region"`
	CompletionYear   string       `json:"completionYear"`
	TotalFloors      string       `json:"totalFloors"`
	TypicalFloorArea string       `json:"typicalFloorArea"`
}

// HasPageImage 返回该记录是否带有扫描页图片。
func (l Listing) HasPageImage() bool {
	return l.PageImageURL != ""
}

// RawSnapshot 表示一次上游整体抓取的原始结果。
// vacancies 外层按 buildingId 分组，内层结构可能不规范，
// 因此保留原始 JSON，由合并流程做宽松解码与过滤。
type RawSnapshot struct {
	Buildings map[string]Building        `json:"buildings"`
	Vacancies map[string]json.RawMessage `json:"vacancies"`
	FetchedAt time.Time                  `json:"fetchedAt"`
}

package utils

import (
	"fmt"
	"math/rand"

	"github.com/mozillazg/go-pinyin"
	"golang.org/x/crypto/bcrypt"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var cleanerRoles = []domain.CleanerRole{
	domain.RoleStandard,
	domain.RoleStandard,
	domain.RolePremium,
	domain.RoleFormatore,
	domain.RoleStraordinario,
}

func GenerateRandomCleanerRole() domain.CleanerRole {
	return cleanerRoles[rand.Intn(len(cleanerRoles))]
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

func GenerateRandomUser(password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         domain.RoleDispatcher,
	}

	return user, nil
}

var startTimes = []string{"07:30", "08:00", "08:00", "08:30", "09:00"}

func GenerateRandomCleaner() *domain.Cleaner {
	return &domain.Cleaner{
		FullName:         GenerateRandomChineseName(),
		Role:             GenerateRandomCleanerRole(),
		DefaultStartTime: startTimes[rand.Intn(len(startTimes))],
		IsActive:         true,
	}
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	random_password := make([]rune, length)
	for i := range random_password {
		random_password[i] = letters[rand.Intn(len(letters))]
	}
	return string(random_password)
}

var upperLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// 任务 ID 必须唯一，物流编码只是展示用，可以重复
func GenerateRandomTaskID() string {
	id := make([]byte, 12)
	for i := range id {
		id[i] = upperLetters[rand.Intn(len(upperLetters))]
	}
	return string(id)
}

func GenerateRandomLogisticCode() string {
	code := make([]byte, 0, 8)
	for i := 0; i < 2; i++ {
		code = append(code, upperLetters[rand.Intn(len(upperLetters))])
	}
	code = append(code, '-')
	for i := 0; i < 5; i++ {
		code = append(code, digits[rand.Intn(len(digits))])
	}
	return string(code)
}

var priorities = []domain.Priority{
	domain.PriorityAlta,
	domain.PriorityMedia,
	domain.PriorityMedia,
	domain.PriorityBassa,
}

var streets = []string{
	"中山大道", "新港西路", "滨江东路", "江南大道", "东风东路",
	"环市中路", "广州大道", "珠江新城", "海珠广场", "天河北路",
}

// GenerateRandomTask 在基准坐标周围随机撒一个待分配的任务。
// 坐标偏移在 ±0.1 度以内，和行程估算的量级匹配。
func GenerateRandomTask(baseLat, baseLng float64) *domain.Task {
	lat := baseLat + (rand.Float64()-0.5)*0.2
	lng := baseLng + (rand.Float64()-0.5)*0.2
	duration := int32(rand.Intn(4)*15 + 30) // 30, 45, 60, 75

	task := &domain.Task{
		ID:              GenerateRandomTaskID(),
		LogisticCode:    GenerateRandomLogisticCode(),
		Address:         fmt.Sprintf("%s%d号", streets[rand.Intn(len(streets))], rand.Intn(500)+1),
		Latitude:        &lat,
		Longitude:       &lng,
		DurationMinutes: &duration,
		Priority:        priorities[rand.Intn(len(priorities))],
		Premium:         rand.Intn(5) == 0,
		Extraordinary:   rand.Intn(10) == 0,
	}

	return task
}

package services

import (
	"errors"
	"strings"

	"github.com/classtask/taskmaster/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrGroupNotFound     = errors.New("group not found")
	ErrGroupInUse        = errors.New("group is assigned to one or more projects")
	ErrAlreadyInGroup    = errors.New("student already belongs to a group")
	ErrNotStudentAccount = errors.New("only students can join groups")
)

type GroupService struct {
	db *gorm.DB
}

func NewGroupService(db *gorm.DB) *GroupService {
	return &GroupService{db: db}
}

type CreateGroupRequest struct {
	Name       string `json:"name" binding:"required"`
	StudentIDs []uint `json:"student_ids"`
}

// GroupDetail pairs a group with its members' profiles.
type GroupDetail struct {
	models.Group
	Members []models.Profile `json:"members"`
}

func (s *GroupService) Create(teacherID uint, req *CreateGroupRequest) (*GroupDetail, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.New("group name is required")
	}

	group := models.Group{Name: name, CreatedBy: teacherID}
	if err := s.db.Create(&group).Error; err != nil {
		return nil, err
	}

	for _, studentID := range req.StudentIDs {
		if err := s.addMember(group.ID, studentID); err != nil {
			LogWarning("Group", "Create",
				"could not add student to new group: "+err.Error(),
				&teacherID, "", "", map[string]uint{"group_id": group.ID, "student_id": studentID})
		}
	}

	PublishChange("groups", "insert", group.ID, 0, group.ID)
	return s.GetByID(group.ID)
}

func (s *GroupService) List() ([]GroupDetail, error) {
	var groups []models.Group
	if err := s.db.Order("name ASC").Find(&groups).Error; err != nil {
		return nil, err
	}

	details := make([]GroupDetail, 0, len(groups))
	for _, g := range groups {
		members, err := s.membersOf(g.ID)
		if err != nil {
			return nil, err
		}
		details = append(details, GroupDetail{Group: g, Members: members})
	}
	return details, nil
}

func (s *GroupService) GetByID(groupID uint) (*GroupDetail, error) {
	var group models.Group
	if err := s.db.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	members, err := s.membersOf(groupID)
	if err != nil {
		return nil, err
	}
	return &GroupDetail{Group: group, Members: members}, nil
}

func (s *GroupService) Rename(groupID uint, name string) (*GroupDetail, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("group name is required")
	}

	var group models.Group
	if err := s.db.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	if err := s.db.Model(&group).Update("name", name).Error; err != nil {
		return nil, err
	}

	PublishChange("groups", "update", group.ID, 0, group.ID)
	return s.GetByID(groupID)
}

// Delete removes a group and its memberships. A group still assigned to
// a project cannot be deleted; reassign or delete the projects first.
func (s *GroupService) Delete(groupID uint) error {
	var group models.Group
	if err := s.db.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupNotFound
		}
		return err
	}

	var projectCount int64
	if err := s.db.Model(&models.Project{}).Where("group_id = ?", groupID).Count(&projectCount).Error; err != nil {
		return err
	}
	if projectCount > 0 {
		return ErrGroupInUse
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	}); err != nil {
		return err
	}

	PublishChange("groups", "delete", group.ID, 0, group.ID)
	return nil
}

// AddMember puts a student into a group. The membership table is the
// single authority on who belongs where; a student can belong to at
// most one group at a time.
func (s *GroupService) AddMember(groupID, studentID uint) error {
	var group models.Group
	if err := s.db.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupNotFound
		}
		return err
	}

	if err := s.addMember(groupID, studentID); err != nil {
		return err
	}

	PublishChange("groups", "update", groupID, 0, groupID)
	return nil
}

func (s *GroupService) addMember(groupID, studentID uint) error {
	var profile models.Profile
	if err := s.db.First(&profile, studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("student profile not found")
		}
		return err
	}
	if profile.Role != models.RoleStudent {
		return ErrNotStudentAccount
	}

	var existing models.GroupMember
	err := s.db.Where("student_id = ?", studentID).First(&existing).Error
	if err == nil {
		if existing.GroupID == groupID {
			return nil
		}
		return ErrAlreadyInGroup
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return s.db.Create(&models.GroupMember{GroupID: groupID, StudentID: studentID}).Error
}

func (s *GroupService) RemoveMember(groupID, studentID uint) error {
	result := s.db.Where("group_id = ? AND student_id = ?", groupID, studentID).
		Delete(&models.GroupMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("student is not a member of this group")
	}

	PublishChange("groups", "update", groupID, 0, groupID)
	return nil
}

// GroupOf returns the group a student belongs to, or nil when they have
// none.
func (s *GroupService) GroupOf(studentID uint) (*GroupDetail, error) {
	var member models.GroupMember
	err := s.db.Where("student_id = ?", studentID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetByID(member.GroupID)
}

func (s *GroupService) membersOf(groupID uint) ([]models.Profile, error) {
	var profiles []models.Profile
	err := s.db.
		Joins("JOIN group_members ON group_members.student_id = profiles.id").
		Where("group_members.group_id = ?", groupID).
		Order("profiles.name ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

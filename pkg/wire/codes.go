package wire

// Code is the leading int32 of every request and response.
type Code int32

const (
	NoMessage Code = 0

	ServerInfoRequest  Code = 1
	ServerInfoResponse Code = 2

	NewMessageRequest  Code = 3
	NewMessageResponse Code = 4

	NewUserRequest  Code = 5
	NewUserResponse Code = 6

	NewConversationRequest  Code = 7
	NewConversationResponse Code = 8

	GetUsersRequest  Code = 9
	GetUsersResponse Code = 10

	GetAllConversationsRequest  Code = 11
	GetAllConversationsResponse Code = 12

	GetConversationsByIDRequest  Code = 13
	GetConversationsByIDResponse Code = 14

	GetMessagesByIDRequest  Code = 15
	GetMessagesByIDResponse Code = 16

	ChangeDefaultRequest  Code = 17
	ChangeDefaultResponse Code = 18

	DeleteConversationRequest  Code = 19
	DeleteConversationResponse Code = 20

	CheckMemberRequest  Code = 21
	CheckOwnerRequest   Code = 22
	CheckCreatorRequest Code = 23
	CheckRemovedRequest Code = 24
	UserStatusResponse  Code = 25

	RetrieveDefaultRequest  Code = 26
	RetrieveDefaultResponse Code = 27

	ChangeAccessRequest  Code = 28
	ChangeAccessResponse Code = 29

	DeleteUserRequest  Code = 30
	DeleteUserResponse Code = 31
)

var names = map[Code]string{
	NoMessage:                    "no_message",
	ServerInfoRequest:            "server_info",
	ServerInfoResponse:           "server_info_response",
	NewMessageRequest:            "new_message",
	NewMessageResponse:           "new_message_response",
	NewUserRequest:               "new_user",
	NewUserResponse:              "new_user_response",
	NewConversationRequest:       "new_conversation",
	NewConversationResponse:      "new_conversation_response",
	GetUsersRequest:              "get_users",
	GetUsersResponse:             "get_users_response",
	GetAllConversationsRequest:   "get_all_conversations",
	GetAllConversationsResponse:  "get_all_conversations_response",
	GetConversationsByIDRequest:  "get_conversations_by_id",
	GetConversationsByIDResponse: "get_conversations_by_id_response",
	GetMessagesByIDRequest:       "get_messages_by_id",
	GetMessagesByIDResponse:      "get_messages_by_id_response",
	ChangeDefaultRequest:         "change_default",
	ChangeDefaultResponse:        "change_default_response",
	DeleteConversationRequest:    "delete_conversation",
	DeleteConversationResponse:   "delete_conversation_response",
	CheckMemberRequest:           "check_member",
	CheckOwnerRequest:            "check_owner",
	CheckCreatorRequest:          "check_creator",
	CheckRemovedRequest:          "check_removed",
	UserStatusResponse:           "user_status_response",
	RetrieveDefaultRequest:       "retrieve_default",
	RetrieveDefaultResponse:      "retrieve_default_response",
	ChangeAccessRequest:          "change_access",
	ChangeAccessResponse:         "change_access_response",
	DeleteUserRequest:            "delete_user",
	DeleteUserResponse:           "delete_user_response",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "unknown"
}
